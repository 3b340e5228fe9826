package ingest

import (
	"regexp"
	"strings"
)

// Vendors publish fixture meetings on production portals. Any title matching
// one of these is dropped wholesale before it touches the database.
var meetingSkipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\btest\b`),
	regexp.MustCompile(`(?i)\bdemo\b`),
	regexp.MustCompile(`(?i)\btraining\b`),
}

// SkipMeeting reports whether a meeting title marks a fixture meeting.
func SkipMeeting(title string) bool {
	for _, p := range meetingSkipPatterns {
		if p.MatchString(title) {
			return true
		}
	}
	return false
}

// Matter types that get rows for referential integrity but are never worth a
// canonical summary: approval of minutes, inter-agency referrals, and
// informational filings.
var skipMatterTypes = map[string]struct{}{
	"minutes":           {},
	"irc":               {},
	"information item":  {},
	"information items": {},
}

// SkipMatterType reports whether matters of this type are excluded from
// summarization jobs.
func SkipMatterType(matterType string) bool {
	_, ok := skipMatterTypes[strings.ToLower(strings.TrimSpace(matterType))]
	return ok
}
