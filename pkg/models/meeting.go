package models

import "time"

// ProcessingStatus tracks where a meeting is in the summarization pipeline.
type ProcessingStatus string

// Meeting processing states.
const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// Attachment is a document attached to an agenda item.
type Attachment struct {
	URL       string `json:"url"`
	Name      string `json:"name"`
	PageRange string `json:"page_range,omitempty"`
}

// Participation holds public-participation details harvested from agenda
// documents (how to call in, email comments, or watch the stream).
type Participation struct {
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	StreamURL string `json:"stream_url,omitempty"`
}

// Merge fills empty fields of p from other, preferring existing values.
func (p *Participation) Merge(other *Participation) {
	if other == nil {
		return
	}
	if p.Phone == "" {
		p.Phone = other.Phone
	}
	if p.Email == "" {
		p.Email = other.Email
	}
	if p.StreamURL == "" {
		p.StreamURL = other.StreamURL
	}
}

// IsEmpty reports whether no participation detail is set.
func (p *Participation) IsEmpty() bool {
	return p == nil || (p.Phone == "" && p.Email == "" && p.StreamURL == "")
}

// Meeting is a single legislative meeting owned by a city.
// Created and upserted by the sync orchestrator; summary fields are written
// by the processor and must survive re-sync.
type Meeting struct {
	ID               string
	Banana           string
	Title            string
	Date             time.Time
	AgendaURL        *string
	PacketURL        *string
	Summary          *string
	Topics           []string
	Participation    *Participation
	ProcessingStatus ProcessingStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AgendaItem is one entry on a meeting's agenda. Identity fields are
// immutable; summary, topics, and filter_reason are written post-processing.
type AgendaItem struct {
	ID           string
	MeetingID    string
	Sequence     int
	Title        string
	Attachments  []Attachment
	MatterID     *string
	Summary      *string
	Topics       []string
	FilterReason *string
}

// HasSummary reports whether the item already carries a non-empty summary.
func (a *AgendaItem) HasSummary() bool {
	return a.Summary != nil && *a.Summary != ""
}
