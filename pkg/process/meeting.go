package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/opencivics/gavel/pkg/extract"
	"github.com/opencivics/gavel/pkg/llm"
	"github.com/opencivics/gavel/pkg/models"
	"github.com/opencivics/gavel/pkg/store"
)

// processMeeting handles a meeting job: the item-level path when the meeting
// has agenda items, the monolithic packet path otherwise.
func (p *Processor) processMeeting(ctx context.Context, meetingID string) error {
	if err := p.summarizerReady(); err != nil {
		return err
	}

	meeting, err := p.store.GetMeeting(ctx, meetingID)
	if errors.Is(err, store.ErrNotFound) {
		return nonRetryable(err)
	}
	if err != nil {
		return err
	}
	city, err := p.store.GetCity(ctx, meeting.Banana)
	if err != nil {
		return err
	}
	items, err := p.store.ListItemsByMeeting(ctx, meetingID)
	if err != nil {
		return err
	}

	if err := p.store.SetMeetingStatus(ctx, meetingID, models.ProcessingInProgress); err != nil {
		return err
	}

	switch {
	case len(items) > 0:
		err = p.processItemLevel(ctx, city, meeting, items)
	case meeting.PacketURL != nil:
		err = p.processMonolithic(ctx, meeting)
	default:
		// Nothing to summarize; the meeting is done as-is.
		err = p.store.SetMeetingStatus(ctx, meetingID, models.ProcessingCompleted)
	}
	if err != nil {
		if serr := p.store.SetMeetingStatus(ctx, meetingID, models.ProcessingFailed); serr != nil {
			slog.Error("Failed to flag meeting as failed", "meeting_id", meetingID, "error", serr)
		}
		return err
	}
	return nil
}

// processItemLevel summarizes a meeting item by item. Chunk results are
// written to the database as they arrive; that write is the durability
// boundary, so a crash mid-batch loses at most the in-flight chunk and a
// re-run skips everything already summarized.
func (p *Processor) processItemLevel(ctx context.Context, city *models.City, meeting *models.Meeting, items []*models.AgendaItem) error {
	var pending []*models.AgendaItem
	for _, it := range items {
		if it.HasSummary() {
			continue
		}
		if reason := FilterReason(it.Title); reason != "" {
			if it.FilterReason == nil {
				if err := p.store.SetItemFilterReason(ctx, it.ID, reason); err != nil {
					return err
				}
			}
			continue
		}
		pending = append(pending, it)
	}

	// Document plan: per-item filtered URLs, plus the first and last items'
	// documents regardless of filtering — that's where participation details
	// live.
	itemURLs := make(map[string][]string, len(pending))
	var union []string
	seen := make(map[string]bool)
	add := func(url string) {
		if !seen[url] {
			seen[url] = true
			union = append(union, url)
		}
	}
	for _, it := range pending {
		for _, a := range extract.SelectAttachments(it.Attachments, city.Banana) {
			itemURLs[it.ID] = append(itemURLs[it.ID], a.URL)
			add(a.URL)
		}
	}
	edges := []*models.AgendaItem{items[0], items[len(items)-1]}
	var edgeURLs []string
	for _, it := range edges {
		for _, a := range extract.SelectAttachments(it.Attachments, city.Banana) {
			edgeURLs = append(edgeURLs, a.URL)
			add(a.URL)
		}
	}

	cache := extract.NewDocumentCache(p.extractor, p.processCfg.ExtractConcurrency)
	defer cache.Release()
	cache.Fill(ctx, union)

	shared := extract.PartitionShared(itemURLs)
	sharedContext := p.sharedContext(cache, shared)

	reqs := make([]llm.ItemRequest, 0, len(pending))
	byID := make(map[string]*models.AgendaItem, len(pending))
	var unavailable int
	for _, it := range pending {
		text, pages, usesShared := itemText(cache, itemURLs[it.ID], shared)
		if text == "" && !usesShared {
			// A transient extractor failure is not an empty document: leave
			// the item pending and surface a retryable error below.
			if cache.FailedTransient(itemURLs[it.ID]) {
				unavailable++
				continue
			}
			if err := p.store.SetItemFilterReason(ctx, it.ID, "empty extraction"); err != nil {
				return err
			}
			continue
		}
		reqs = append(reqs, llm.ItemRequest{
			ItemID:           it.ID,
			Title:            it.Title,
			Text:             text,
			PageCount:        pages,
			UseSharedContext: usesShared,
		})
		byID[it.ID] = it
	}

	var written, failed int
	for chunk := range p.summarizer.SubmitBatch(ctx, reqs, sharedContext) {
		for _, res := range chunk.Results {
			if res.Err != nil {
				failed++
				slog.Warn("Item summarization failed", "item_id", res.ItemID, "error", res.Err)
				continue
			}
			topics := llm.NormalizeTopics(res.Topics)
			if err := p.store.SetItemResult(ctx, res.ItemID, res.Summary, topics); err != nil {
				return err
			}
			written++

			if it := byID[res.ItemID]; it != nil && it.MatterID != nil {
				if err := p.writeMatterCanonical(ctx, city, *it.MatterID, res.Summary, topics); err != nil {
					slog.Warn("Failed to propagate canonical summary", "matter_id", *it.MatterID, "error", err)
				}
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(reqs) > 0 && written == 0 {
		return fmt.Errorf("all %d item summaries failed for meeting %s", failed, meeting.ID)
	}
	if unavailable > 0 {
		return fmt.Errorf("extraction unavailable for %d of %d pending items in meeting %s",
			unavailable, len(pending), meeting.ID)
	}

	// Aggregate onto the meeting row.
	final, err := p.store.ListItemsByMeeting(ctx, meeting.ID)
	if err != nil {
		return err
	}
	sets := make([][]string, 0, len(final))
	for _, it := range final {
		sets = append(sets, it.Topics)
	}

	participation := &models.Participation{}
	for _, url := range edgeURLs {
		if doc, ok := cache.Get(url); ok {
			participation.Merge(ParseParticipation(doc.Text))
		}
	}

	return p.store.FinalizeMeeting(ctx, meeting.ID, llm.MergeTopics(sets...), participation, models.ProcessingCompleted)
}

// processMonolithic summarizes a meeting from its full agenda packet.
func (p *Processor) processMonolithic(ctx context.Context, meeting *models.Meeting) error {
	doc, err := p.extractor.Extract(ctx, *meeting.PacketURL)
	if err != nil {
		return fmt.Errorf("extracting packet for %s: %w", meeting.ID, err)
	}
	if drop, reason := extract.DiscardText(doc); drop {
		return nonRetryable(fmt.Errorf("packet for %s discarded: %s", meeting.ID, reason))
	}

	prompt, err := llm.MeetingPrompt(meeting.Title, doc.Text)
	if err != nil {
		return err
	}
	summary, topics, err := p.summarizer.Summarize(ctx, prompt)
	if err != nil {
		return fmt.Errorf("summarizing packet for %s: %w", meeting.ID, err)
	}

	if err := p.store.SetMeetingSummary(ctx, meeting.ID, summary, topics); err != nil {
		return err
	}
	return p.store.FinalizeMeeting(ctx, meeting.ID, topics, ParseParticipation(doc.Text), models.ProcessingCompleted)
}

// writeMatterCanonical records an item's summary as its matter's canonical
// summary and back-fills sibling appearances that lack their own. The stored
// attachment hash covers the union across all appearances — the same universe
// the enqueue decider and the matter job hash — so an unchanged matter
// compares equal on the next sync.
func (p *Processor) writeMatterCanonical(ctx context.Context, city *models.City, matterID string, summary string, topics []string) error {
	siblings, err := p.store.ListAppearanceItemIDs(ctx, matterID)
	if err != nil {
		return err
	}
	items, err := p.store.ListItemsByIDs(ctx, siblings)
	if err != nil {
		return err
	}
	var union []models.Attachment
	for _, it := range items {
		union = append(union, it.Attachments...)
	}

	hash := p.hashForCity(ctx, city, union)
	if err := p.store.SetMatterCanonical(ctx, matterID, summary, topics, hash); err != nil {
		return err
	}
	_, err = p.store.BackfillItemSummaries(ctx, siblings, summary, topics)
	return err
}

func (p *Processor) hashForCity(ctx context.Context, city *models.City, attachments []models.Attachment) string {
	if city.EnhancedHashing() {
		return p.hasher.HashEnhanced(ctx, attachments)
	}
	return p.hasher.Hash(attachments)
}

// sharedContext concatenates the shared documents into the meeting-level
// context block, in URL order so the prompt is stable across runs.
func (p *Processor) sharedContext(cache *extract.DocumentCache, shared map[string]bool) string {
	urls := make([]string, 0, len(shared))
	for url := range shared {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	var b strings.Builder
	for _, url := range urls {
		if doc, ok := cache.Get(url); ok {
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(doc.Text)
		}
	}
	return b.String()
}

// itemText joins an item's own (non-shared) document texts.
func itemText(cache *extract.DocumentCache, urls []string, shared map[string]bool) (string, int, bool) {
	var (
		b          strings.Builder
		pages      int
		usesShared bool
	)
	for _, url := range urls {
		if shared[url] {
			usesShared = true
			continue
		}
		doc, ok := cache.Get(url)
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(doc.Text)
		pages += doc.PageCount
	}
	return b.String(), pages, usesShared
}
