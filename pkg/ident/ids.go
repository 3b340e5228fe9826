// Package ident provides deterministic identifiers and content-addressed
// attachment hashing. Repeated sync of the same vendor payload must yield the
// same primary keys, so every ID here is a pure function of its inputs.
package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

// shortHash returns the first 16 hex characters of sha256(s).
func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// MeetingID derives the primary key for a meeting from its city, the vendor's
// meeting key, and the meeting date.
func MeetingID(banana, vendorKey string, date time.Time) string {
	return fmt.Sprintf("%s_%s", banana, shortHash(fmt.Sprintf("%s:%s:%s", banana, vendorKey, date.UTC().Format("2006-01-02"))))
}

// ItemID derives the primary key for an agenda item within a meeting.
func ItemID(meetingID string, sequence int, vendorItemKey string) string {
	return fmt.Sprintf("%s_i%s", meetingID, shortHash(fmt.Sprintf("%s:%d:%s", meetingID, sequence, vendorItemKey)))
}

var matterIDPattern = regexp.MustCompile(`^[a-z0-9]+[A-Z]{2}_[0-9a-f]{16}$`)

// ValidMatterID reports whether id has the shape MatterID produces.
func ValidMatterID(id string) bool {
	return matterIDPattern.MatchString(id)
}

// MatterID derives the primary key for a matter:
// {banana}_{first 16 hex of sha256(banana:matterFile:vendorID)}.
// Both identifiers feed the hash; matterFile is merely preferred for display.
// Returns "" when neither identifier is present (no matter is tracked).
func MatterID(banana, matterFile, vendorID string) string {
	if matterFile == "" && vendorID == "" {
		return ""
	}
	return fmt.Sprintf("%s_%s", banana, shortHash(fmt.Sprintf("%s:%s:%s", banana, matterFile, vendorID)))
}
