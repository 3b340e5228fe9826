package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opencivics/gavel/pkg/models"
)

const matterColumns = `id, banana, matter_file, matter_id, matter_type, title, canonical_summary, canonical_topics, attachment_hash, sponsors, first_seen, last_seen, appearance_count`

func scanMatter(row interface{ Scan(...any) error }) (*models.Matter, error) {
	var (
		m        models.Matter
		topics   []byte
		sponsors []byte
	)
	if err := row.Scan(&m.ID, &m.Banana, &m.File, &m.VendorID, &m.Type, &m.Title,
		&m.CanonicalSummary, &topics, &m.AttachmentHash, &sponsors,
		&m.FirstSeen, &m.LastSeen, &m.AppearanceCount); err != nil {
		return nil, err
	}
	if err := scanJSON(topics, &m.CanonicalTopics); err != nil {
		return nil, err
	}
	if err := scanJSON(sponsors, &m.Sponsors); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMatter returns one matter by id.
func (s *Store) GetMatter(ctx context.Context, id string) (*models.Matter, error) {
	m, err := scanMatter(s.q.QueryRowContext(ctx,
		`SELECT `+matterColumns+` FROM matters WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("matter %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting matter %q: %w", id, err)
	}
	return m, nil
}

// GetOrCreateMatter looks up a matter, creating it on first observation.
// On create, first_seen = last_seen = the observing meeting's date. Existing
// rows get their title/type/sponsors refreshed from the latest observation.
// Returns the stored matter and whether it was newly created.
func (s *Store) GetOrCreateMatter(ctx context.Context, m *models.Matter) (*models.Matter, bool, error) {
	existing, err := s.GetMatter(ctx, m.ID)
	if err == nil {
		if err := s.refreshMatter(ctx, m); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	sponsors, err := jsonb(m.Sponsors)
	if err != nil {
		return nil, false, err
	}
	// A concurrent insert of the same matter is absorbed by DO NOTHING; the
	// follow-up read returns whichever row won.
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO matters (id, banana, matter_file, matter_id, matter_type, title, sponsors, first_seen, last_seen, appearance_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, 0)
		ON CONFLICT (id) DO NOTHING`,
		m.ID, m.Banana, m.File, m.VendorID, m.Type, m.Title, sponsors, m.FirstSeen)
	if err != nil {
		return nil, false, fmt.Errorf("creating matter %q: %w", m.ID, err)
	}

	created, err := s.GetMatter(ctx, m.ID)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// refreshMatter updates the mutable vendor-sourced fields of an existing row.
func (s *Store) refreshMatter(ctx context.Context, m *models.Matter) error {
	sponsors, err := jsonb(m.Sponsors)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		UPDATE matters SET
			title = CASE WHEN $2 <> '' THEN $2 ELSE title END,
			matter_type = CASE WHEN $3 <> '' THEN $3 ELSE matter_type END,
			sponsors = CASE WHEN $4::jsonb <> '[]'::jsonb THEN $4::jsonb ELSE sponsors END
		WHERE id = $1`,
		m.ID, m.Title, m.Type, sponsors)
	if err != nil {
		return fmt.Errorf("refreshing matter %q: %w", m.ID, err)
	}
	return nil
}

// RecordAppearance links a matter to a meeting's agenda item. The insert is
// idempotent; appearance_count and last_seen advance only when the
// appearance is new. Returns whether a new appearance was recorded.
func (s *Store) RecordAppearance(ctx context.Context, a *models.MatterAppearance, meetingDate time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO matter_appearances (matter_id, meeting_id, item_id, sequence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (matter_id, meeting_id, item_id) DO NOTHING`,
		a.MatterID, a.MeetingID, a.ItemID, a.Sequence)
	if err != nil {
		return false, fmt.Errorf("recording appearance of %q: %w", a.MatterID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	_, err = s.q.ExecContext(ctx, `
		UPDATE matters SET
			appearance_count = appearance_count + 1,
			last_seen = GREATEST(last_seen, $2)
		WHERE id = $1`,
		a.MatterID, meetingDate)
	if err != nil {
		return false, fmt.Errorf("bumping appearance count of %q: %w", a.MatterID, err)
	}
	return true, nil
}

// ListAppearanceItemIDs returns the ids of all agenda items linked to the
// matter across meetings.
func (s *Store) ListAppearanceItemIDs(ctx context.Context, matterID string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT item_id FROM matter_appearances WHERE matter_id = $1`, matterID)
	if err != nil {
		return nil, fmt.Errorf("listing appearances of %q: %w", matterID, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning appearance: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetMatterCanonical writes the canonical summary, topics, and the attachment
// hash that produced them.
func (s *Store) SetMatterCanonical(ctx context.Context, id, summary string, topics []string, attachmentHash string) error {
	tj, err := jsonb(topics)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE matters SET canonical_summary = $2, canonical_topics = $3, attachment_hash = $4
		WHERE id = $1`,
		id, summary, tj, attachmentHash)
	if err != nil {
		return fmt.Errorf("setting canonical summary for matter %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("matter %q: %w", id, ErrNotFound)
	}
	return nil
}
