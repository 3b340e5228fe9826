// Package ingest turns vendor fetch results into normalized rows and queue
// jobs. Each meeting is written in its own transaction; enqueues happen after
// commit so a queue hiccup never rolls back meeting data (the queue is
// recoverable by re-syncing).
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opencivics/gavel/pkg/ident"
	"github.com/opencivics/gavel/pkg/models"
	"github.com/opencivics/gavel/pkg/queue"
	"github.com/opencivics/gavel/pkg/store"
)

// Stats counts what one city sync did.
type Stats struct {
	MeetingsStored     int
	MeetingsSkipped    int
	ItemsStored        int
	MattersCreated     int
	MattersSeen        int
	AppearancesCreated int
	MeetingJobs        int
	MatterJobs         int
	EnqueueFailures    int
}

// Orchestrator normalizes vendor drafts into the store and enqueues
// processing work.
type Orchestrator struct {
	store  *store.Store
	queue  *queue.Queue
	hasher *ident.AttachmentHasher
	now    func() time.Time
}

// NewOrchestrator wires the orchestrator. hasher may be nil for a default.
func NewOrchestrator(st *store.Store, q *queue.Queue, hasher *ident.AttachmentHasher) *Orchestrator {
	if hasher == nil {
		hasher = ident.NewAttachmentHasher(nil)
	}
	return &Orchestrator{store: st, queue: q, hasher: hasher, now: time.Now}
}

// matterObservation accumulates what one meeting told us about a matter.
type matterObservation struct {
	existing    *models.Matter // stored state before this sync, nil on create
	matterType  string
	meetingDate time.Time
}

// SyncCity applies a vendor fetch result for one city. Meetings are written
// one transaction each; a failure in one meeting aborts the city sync so the
// fetcher can record it and move on.
func (o *Orchestrator) SyncCity(ctx context.Context, city *models.City, drafts []models.MeetingDraft) (*Stats, error) {
	stats := &Stats{}
	for i := range drafts {
		if err := o.syncMeeting(ctx, city, &drafts[i], stats); err != nil {
			return stats, fmt.Errorf("syncing meeting %q for %s: %w", drafts[i].Title, city.Banana, err)
		}
	}
	return stats, nil
}

func (o *Orchestrator) syncMeeting(ctx context.Context, city *models.City, draft *models.MeetingDraft, stats *Stats) error {
	if SkipMeeting(draft.Title) {
		slog.Debug("Skipping fixture meeting", "banana", city.Banana, "title", draft.Title)
		stats.MeetingsSkipped++
		return nil
	}

	meetingID := ident.MeetingID(city.Banana, draft.VendorKey, draft.Date)
	observations := make(map[string]*matterObservation)
	var matterOrder []string

	err := o.store.WithTx(ctx, func(tx *store.Store) error {
		meeting := &models.Meeting{
			ID:        meetingID,
			Banana:    city.Banana,
			Title:     draft.Title,
			Date:      draft.Date,
			AgendaURL: optional(draft.AgendaURL),
			PacketURL: optional(draft.PacketURL),
		}
		if err := tx.UpsertMeeting(ctx, meeting); err != nil {
			return err
		}

		for i := range draft.Items {
			item := &draft.Items[i]
			itemID := ident.ItemID(meetingID, item.Sequence, item.VendorKey)

			var matterID *string
			if item.HasMatter() {
				mid := ident.MatterID(city.Banana, item.MatterFile, item.MatterVendorID)
				matterID = &mid

				stored, created, err := tx.GetOrCreateMatter(ctx, &models.Matter{
					ID:        mid,
					Banana:    city.Banana,
					File:      item.MatterFile,
					VendorID:  item.MatterVendorID,
					Type:      item.MatterType,
					Title:     item.Title,
					Sponsors:  item.Sponsors,
					FirstSeen: draft.Date,
					LastSeen:  draft.Date,
				})
				if err != nil {
					return err
				}
				if created {
					stats.MattersCreated++
				} else {
					stats.MattersSeen++
				}

				if _, ok := observations[mid]; !ok {
					obs := &matterObservation{matterType: item.MatterType, meetingDate: draft.Date}
					if !created {
						obs.existing = stored
					}
					observations[mid] = obs
					matterOrder = append(matterOrder, mid)
				}

				newApp, err := tx.RecordAppearance(ctx, &models.MatterAppearance{
					MatterID:  mid,
					MeetingID: meetingID,
					ItemID:    itemID,
					Sequence:  item.Sequence,
				}, draft.Date)
				if err != nil {
					return err
				}
				if newApp {
					stats.AppearancesCreated++
				}
			}

			if err := tx.UpsertItem(ctx, &models.AgendaItem{
				ID:          itemID,
				MeetingID:   meetingID,
				Sequence:    item.Sequence,
				Title:       item.Title,
				Attachments: item.Attachments,
				MatterID:    matterID,
			}); err != nil {
				return err
			}
			stats.ItemsStored++
		}
		return nil
	})
	if err != nil {
		return err
	}
	stats.MeetingsStored++

	o.enqueueMeeting(ctx, city, meetingID, stats)
	for _, mid := range matterOrder {
		o.enqueueMatter(ctx, city, mid, meetingID, observations[mid], stats)
	}
	return nil
}

// enqueueMeeting decides and enqueues the meeting job. Failures are logged,
// never propagated: the committed rows will be picked up on the next sync.
func (o *Orchestrator) enqueueMeeting(ctx context.Context, city *models.City, meetingID string, stats *Stats) {
	meeting, err := o.store.GetMeeting(ctx, meetingID)
	if err != nil {
		slog.Error("Failed to reload meeting for enqueue decision", "meeting_id", meetingID, "error", err)
		stats.EnqueueFailures++
		return
	}
	items, err := o.store.ListItemsByMeeting(ctx, meetingID)
	if err != nil {
		slog.Error("Failed to list items for enqueue decision", "meeting_id", meetingID, "error", err)
		stats.EnqueueFailures++
		return
	}

	enqueue, reason := ShouldEnqueueMeeting(meeting, items)
	if !enqueue {
		slog.Debug("Meeting job not enqueued", "meeting_id", meetingID, "reason", reason)
		return
	}

	req := queue.EnqueueRequest{
		Type:     models.JobTypeMeeting,
		Payload:  models.MeetingJobPayload{MeetingID: meetingID},
		DedupKey: models.MeetingDedupKey(meetingID),
		Banana:   city.Banana,
		Priority: queue.MeetingPriority(meeting.Date, o.now()),
	}
	_, created, err := o.queue.Enqueue(ctx, req)
	if err != nil {
		slog.Error("Failed to enqueue meeting job", "meeting_id", meetingID, "error", err)
		stats.EnqueueFailures++
		return
	}
	if created {
		stats.MeetingJobs++
		return
	}
	// A finished job may be holding the dedup key while the vendor amended
	// the agenda: new or still-unsummarized items need another pass.
	_, requeued, err := o.queue.Requeue(ctx, req)
	if err != nil {
		slog.Error("Failed to requeue meeting job", "meeting_id", meetingID, "error", err)
		stats.EnqueueFailures++
		return
	}
	if requeued {
		slog.Info("Meeting job requeued", "meeting_id", meetingID, "reason", reason)
		stats.MeetingJobs++
		return
	}
	// Still active; refresh the priority in case the meeting date moved.
	if err := o.queue.UpdatePriority(ctx, req.DedupKey, req.Priority); err != nil {
		slog.Warn("Failed to refresh meeting job priority", "meeting_id", meetingID, "error", err)
	}
}

func (o *Orchestrator) enqueueMatter(ctx context.Context, city *models.City, matterID, meetingID string, obs *matterObservation, stats *Stats) {
	if SkipMatterType(obs.matterType) {
		slog.Debug("Matter type excluded from summarization", "matter_id", matterID, "matter_type", obs.matterType)
		return
	}

	itemIDs, err := o.store.ListAppearanceItemIDs(ctx, matterID)
	if err != nil {
		slog.Error("Failed to list matter appearances for enqueue", "matter_id", matterID, "error", err)
		stats.EnqueueFailures++
		return
	}
	items, err := o.store.ListItemsByIDs(ctx, itemIDs)
	if err != nil {
		slog.Error("Failed to load matter appearance items for enqueue", "matter_id", matterID, "error", err)
		stats.EnqueueFailures++
		return
	}

	// Hash the attachment union across all appearances: the matter job and
	// the canonical write hash the same universe, so an unchanged matter
	// compares equal here on the next sync.
	var union []models.Attachment
	for _, it := range items {
		union = append(union, it.Attachments...)
	}
	hash := o.hashAttachments(ctx, city, union)
	enqueue, reason := ShouldEnqueueMatter(obs.existing, hash, len(union) > 0)
	if !enqueue {
		slog.Debug("Matter job not enqueued", "matter_id", matterID, "reason", reason)
		return
	}

	req := queue.EnqueueRequest{
		Type: models.JobTypeMatter,
		Payload: models.MatterJobPayload{
			MatterID:                matterID,
			RepresentativeMeetingID: meetingID,
			ItemIDs:                 itemIDs,
		},
		DedupKey: models.MatterDedupKey(matterID),
		Banana:   city.Banana,
		Priority: queue.MatterPriority(obs.meetingDate, o.now()),
	}
	_, created, err := o.queue.Enqueue(ctx, req)
	if err != nil {
		slog.Error("Failed to enqueue matter job", "matter_id", matterID, "error", err)
		stats.EnqueueFailures++
		return
	}
	if !created {
		// An earlier job for this matter may have finished; changed
		// attachments mean the canonical summary must be produced again.
		_, created, err = o.queue.Requeue(ctx, req)
		if err != nil {
			slog.Error("Failed to requeue matter job", "matter_id", matterID, "error", err)
			stats.EnqueueFailures++
			return
		}
	}
	if created {
		slog.Info("Matter job enqueued", "matter_id", matterID, "reason", reason)
		stats.MatterJobs++
	}
}

func (o *Orchestrator) hashAttachments(ctx context.Context, city *models.City, attachments []models.Attachment) string {
	if city.EnhancedHashing() {
		return o.hasher.HashEnhanced(ctx, attachments)
	}
	return o.hasher.Hash(attachments)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
