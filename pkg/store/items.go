package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opencivics/gavel/pkg/models"
)

const itemColumns = `id, meeting_id, sequence, title, attachments, matter_id, summary, topics, filter_reason`

func scanItem(row interface{ Scan(...any) error }) (*models.AgendaItem, error) {
	var (
		it          models.AgendaItem
		attachments []byte
		topics      []byte
	)
	if err := row.Scan(&it.ID, &it.MeetingID, &it.Sequence, &it.Title, &attachments,
		&it.MatterID, &it.Summary, &topics, &it.FilterReason); err != nil {
		return nil, err
	}
	if err := scanJSON(attachments, &it.Attachments); err != nil {
		return nil, err
	}
	if err := scanJSON(topics, &it.Topics); err != nil {
		return nil, err
	}
	return &it, nil
}

// GetItem returns one agenda item by id.
func (s *Store) GetItem(ctx context.Context, id string) (*models.AgendaItem, error) {
	it, err := scanItem(s.q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM agenda_items WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("agenda item %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting agenda item %q: %w", id, err)
	}
	return it, nil
}

// ListItemsByMeeting returns a meeting's items in agenda order.
func (s *Store) ListItemsByMeeting(ctx context.Context, meetingID string) ([]*models.AgendaItem, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM agenda_items WHERE meeting_id = $1 ORDER BY sequence`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("listing items for meeting %q: %w", meetingID, err)
	}
	defer func() { _ = rows.Close() }()
	return collectItems(rows)
}

// ListItemsByIDs returns the named items, in agenda order.
func (s *Store) ListItemsByIDs(ctx context.Context, ids []string) ([]*models.AgendaItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM agenda_items WHERE id = ANY($1) ORDER BY sequence`, ids)
	if err != nil {
		return nil, fmt.Errorf("listing items by ids: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectItems(rows)
}

func collectItems(rows *sql.Rows) ([]*models.AgendaItem, error) {
	var items []*models.AgendaItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning agenda item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpsertItem creates or refreshes an agenda item from vendor data while
// preserving processing output: summary, topics, and filter_reason survive
// the re-sync.
func (s *Store) UpsertItem(ctx context.Context, it *models.AgendaItem) error {
	attachments, err := jsonb(it.Attachments)
	if err != nil {
		return err
	}
	topics, err := jsonb(it.Topics)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO agenda_items (id, meeting_id, sequence, title, attachments, matter_id, topics)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			sequence = EXCLUDED.sequence,
			title = EXCLUDED.title,
			attachments = EXCLUDED.attachments,
			matter_id = COALESCE(EXCLUDED.matter_id, agenda_items.matter_id)`,
		it.ID, it.MeetingID, it.Sequence, it.Title, attachments, it.MatterID, topics)
	if err != nil {
		return fmt.Errorf("upserting agenda item %q: %w", it.ID, err)
	}
	return nil
}

// SetItemResult writes the LLM output for one item.
func (s *Store) SetItemResult(ctx context.Context, id, summary string, topics []string) error {
	tj, err := jsonb(topics)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx,
		`UPDATE agenda_items SET summary = $2, topics = $3 WHERE id = $1`,
		id, summary, tj)
	if err != nil {
		return fmt.Errorf("setting result for item %q: %w", id, err)
	}
	return nil
}

// SetItemFilterReason marks an item as filtered out of summarization
// (procedural, ceremonial, administrative, or extraction-empty). The row is
// kept for search; it just never reaches the LLM.
func (s *Store) SetItemFilterReason(ctx context.Context, id, reason string) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE agenda_items SET filter_reason = $2 WHERE id = $1`,
		id, reason)
	if err != nil {
		return fmt.Errorf("setting filter reason for item %q: %w", id, err)
	}
	return nil
}

// BackfillItemSummaries copies a matter's canonical summary onto the listed
// items, skipping any item that already has its own summary.
// Returns the number of items updated.
func (s *Store) BackfillItemSummaries(ctx context.Context, itemIDs []string, summary string, topics []string) (int, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	tj, err := jsonb(topics)
	if err != nil {
		return 0, err
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE agenda_items SET summary = $2, topics = $3
		WHERE id = ANY($1) AND summary IS NULL`,
		itemIDs, summary, tj)
	if err != nil {
		return 0, fmt.Errorf("backfilling item summaries: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
