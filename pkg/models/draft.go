package models

import "time"

// MeetingDraft is the uniform shape vendor adapters produce for one meeting.
// Keys are vendor-assigned and stable across re-fetches of the same meeting.
type MeetingDraft struct {
	VendorKey string
	Title     string
	Date      time.Time
	AgendaURL string
	PacketURL string
	Items     []AgendaItemDraft
}

// AgendaItemDraft is a vendor's view of one agenda item. MatterFile and
// MatterVendorID are both optional; when both are empty no matter is tracked.
type AgendaItemDraft struct {
	VendorKey      string
	Title          string
	Sequence       int
	MatterFile     string
	MatterVendorID string
	MatterType     string
	Sponsors       []string
	Attachments    []Attachment
}

// HasMatter reports whether the item references a trackable matter.
func (d *AgendaItemDraft) HasMatter() bool {
	return d.MatterFile != "" || d.MatterVendorID != ""
}

// SyncResult summarizes one city's sync outcome within a pass.
type SyncResult struct {
	Banana            string
	Status            string // "success", "failed", or "skipped"
	MeetingsFound     int
	MeetingsProcessed int
	ItemsStored       int
	Duration          time.Duration
	Error             string
}
