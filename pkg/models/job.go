package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobType discriminates queue job payloads.
type JobType string

// Queue job types.
const (
	JobTypeMeeting JobType = "meeting"
	JobTypeMatter  JobType = "matter"
)

// JobStatus is the queue state machine.
type JobStatus string

// Queue job states. Completed, failed, and dead_letter are terminal.
const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobDeadLetter JobStatus = "dead_letter"
)

// Terminal reports whether s is a terminal queue state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobDeadLetter
}

// MeetingJobPayload asks the processor to summarize a meeting's items (or its
// monolithic packet when it has no items).
type MeetingJobPayload struct {
	MeetingID string `json:"meeting_id"`
}

// MatterJobPayload asks the processor to produce a canonical matter summary
// from the union of the listed items' attachments.
type MatterJobPayload struct {
	MatterID                string   `json:"matter_id"`
	RepresentativeMeetingID string   `json:"representative_meeting_id"`
	ItemIDs                 []string `json:"item_ids"`
}

// MeetingDedupKey returns the queue dedup key for a meeting job.
func MeetingDedupKey(meetingID string) string { return "meeting://" + meetingID }

// MatterDedupKey returns the queue dedup key for a matter job.
func MatterDedupKey(matterID string) string { return "matter://" + matterID }

// QueueJob is a durable unit of processing work. Payload is a JSON blob
// decoded according to Type.
type QueueJob struct {
	ID           int64
	Type         JobType
	Payload      json.RawMessage
	DedupKey     string
	Banana       string
	Priority     int
	Status       JobStatus
	RetryCount   int
	ErrorMessage *string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	FailedAt     *time.Time
}

// MeetingPayload decodes the payload of a meeting job.
func (j *QueueJob) MeetingPayload() (MeetingJobPayload, error) {
	var p MeetingJobPayload
	if j.Type != JobTypeMeeting {
		return p, fmt.Errorf("job %d is %q, not a meeting job", j.ID, j.Type)
	}
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return p, fmt.Errorf("decoding meeting payload for job %d: %w", j.ID, err)
	}
	return p, nil
}

// MatterPayload decodes the payload of a matter job.
func (j *QueueJob) MatterPayload() (MatterJobPayload, error) {
	var p MatterJobPayload
	if j.Type != JobTypeMatter {
		return p, fmt.Errorf("job %d is %q, not a matter job", j.ID, j.Type)
	}
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return p, fmt.Errorf("decoding matter payload for job %d: %w", j.ID, err)
	}
	return p, nil
}
