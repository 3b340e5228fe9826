package process

import (
	"context"
	"errors"
	"fmt"

	"github.com/opencivics/gavel/pkg/extract"
	"github.com/opencivics/gavel/pkg/ident"
	"github.com/opencivics/gavel/pkg/llm"
	"github.com/opencivics/gavel/pkg/models"
	"github.com/opencivics/gavel/pkg/store"
)

// processMatter produces a matter's canonical summary: union the attachments
// across its appearances, summarize the richest single appearance, and
// back-fill every linked item that lacks its own summary.
func (p *Processor) processMatter(ctx context.Context, payload models.MatterJobPayload) error {
	if err := p.summarizerReady(); err != nil {
		return err
	}
	if !ident.ValidMatterID(payload.MatterID) {
		return nonRetryable(fmt.Errorf("malformed matter id %q", payload.MatterID))
	}

	matter, err := p.store.GetMatter(ctx, payload.MatterID)
	if errors.Is(err, store.ErrNotFound) {
		return nonRetryable(err)
	}
	if err != nil {
		return err
	}
	city, err := p.store.GetCity(ctx, matter.Banana)
	if err != nil {
		return err
	}
	items, err := p.store.ListItemsByIDs(ctx, payload.ItemIDs)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nonRetryable(fmt.Errorf("matter %s has no linked items", payload.MatterID))
	}

	// Union for the hash; richest filtered attachment set picks the
	// representative item.
	var (
		union          []models.Attachment
		seen           = make(map[string]bool)
		representative *models.AgendaItem
		repDocs        []models.Attachment
	)
	for _, it := range items {
		for _, a := range it.Attachments {
			key := a.URL + "|" + a.Name
			if !seen[key] {
				seen[key] = true
				union = append(union, a)
			}
		}
		filtered := extract.SelectAttachments(it.Attachments, city.Banana)
		if representative == nil || len(filtered) > len(repDocs) {
			representative = it
			repDocs = filtered
		}
	}
	hash := p.hashForCity(ctx, city, union)

	cache := extract.NewDocumentCache(p.extractor, p.processCfg.ExtractConcurrency)
	defer cache.Release()
	urls := make([]string, 0, len(repDocs))
	for _, a := range repDocs {
		urls = append(urls, a.URL)
	}
	cache.Fill(ctx, urls)

	text, _, _ := itemText(cache, urls, nil)
	if text == "" {
		return fmt.Errorf("no text extracted for matter %s", payload.MatterID)
	}

	prompt, err := llm.MatterPrompt(matter.Title, matter.File, text)
	if err != nil {
		return err
	}
	summary, topics, err := p.summarizer.Summarize(ctx, prompt)
	if err != nil {
		return fmt.Errorf("summarizing matter %s: %w", payload.MatterID, err)
	}

	if err := p.store.SetMatterCanonical(ctx, payload.MatterID, summary, topics, hash); err != nil {
		return err
	}
	if _, err := p.store.BackfillItemSummaries(ctx, payload.ItemIDs, summary, topics); err != nil {
		return err
	}
	return nil
}
