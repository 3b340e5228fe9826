package models

import "time"

// Matter is a legislative item (ordinance, resolution, ...) tracked across
// its appearances on multiple agendas. The canonical summary is produced once
// per attachment set and back-filled onto linked agenda items.
type Matter struct {
	ID               string
	Banana           string
	File             string // public identifier, e.g. "BL2025-1098"
	VendorID         string // platform-internal matter id
	Type             string
	Title            string
	CanonicalSummary *string
	CanonicalTopics  []string
	AttachmentHash   *string
	Sponsors         []string
	FirstSeen        time.Time
	LastSeen         time.Time
	AppearanceCount  int
}

// HasCanonicalSummary reports whether a canonical summary has been produced.
func (m *Matter) HasCanonicalSummary() bool {
	return m.CanonicalSummary != nil && *m.CanonicalSummary != ""
}

// MatterAppearance links a matter to the meeting and agenda item where it
// appeared, recording its position on that agenda.
type MatterAppearance struct {
	MatterID  string
	MeetingID string
	ItemID    string
	Sequence  int
}
