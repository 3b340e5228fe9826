package ingest

import "github.com/opencivics/gavel/pkg/models"

// ShouldEnqueueMeeting decides whether a freshly synced meeting needs a
// processing job. Meetings whose work is already done are left alone so
// re-sync stays cheap and idempotent.
func ShouldEnqueueMeeting(meeting *models.Meeting, items []*models.AgendaItem) (bool, string) {
	if len(items) > 0 {
		for _, it := range items {
			if !it.HasSummary() {
				return true, "items pending summarization"
			}
		}
		return false, "all items summarized"
	}
	if meeting.Summary != nil && *meeting.Summary != "" {
		return false, "monolithic already summarized"
	}
	return true, "monolithic pending summarization"
}

// ShouldEnqueueMatter decides whether a matter observation needs a canonical
// summarization job. existing is the stored row before this observation, or
// nil on first sight.
func ShouldEnqueueMatter(existing *models.Matter, newAttachmentHash string, hasAttachments bool) (bool, string) {
	if !hasAttachments {
		return false, "no attachments"
	}
	if existing == nil || !existing.HasCanonicalSummary() {
		return true, "new matter"
	}
	if existing.AttachmentHash == nil || *existing.AttachmentHash != newAttachmentHash {
		return true, "attachments changed"
	}
	return false, "unchanged"
}
