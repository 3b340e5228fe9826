package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opencivics/gavel/pkg/models"
)

const meetingColumns = `id, banana, title, date, agenda_url, packet_url, summary, topics, participation, processing_status, created_at, updated_at`

func scanMeeting(row interface{ Scan(...any) error }) (*models.Meeting, error) {
	var (
		m             models.Meeting
		topics        []byte
		participation []byte
	)
	if err := row.Scan(&m.ID, &m.Banana, &m.Title, &m.Date, &m.AgendaURL, &m.PacketURL,
		&m.Summary, &topics, &participation, &m.ProcessingStatus, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if err := scanJSON(topics, &m.Topics); err != nil {
		return nil, err
	}
	if len(participation) > 0 {
		m.Participation = &models.Participation{}
		if err := scanJSON(participation, m.Participation); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// GetMeeting returns one meeting by id.
func (s *Store) GetMeeting(ctx context.Context, id string) (*models.Meeting, error) {
	m, err := scanMeeting(s.q.QueryRowContext(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("meeting %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting meeting %q: %w", id, err)
	}
	return m, nil
}

// UpsertMeeting creates or refreshes a meeting row from vendor data while
// preserving processing output: an existing summary, topics, participation,
// and processing_status survive the re-sync.
func (s *Store) UpsertMeeting(ctx context.Context, m *models.Meeting) error {
	topics, err := jsonb(m.Topics)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO meetings (id, banana, title, date, agenda_url, packet_url, topics, processing_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			date = EXCLUDED.date,
			agenda_url = COALESCE(EXCLUDED.agenda_url, meetings.agenda_url),
			packet_url = COALESCE(EXCLUDED.packet_url, meetings.packet_url),
			updated_at = now()`,
		m.ID, m.Banana, m.Title, m.Date, m.AgendaURL, m.PacketURL, topics,
		models.ProcessingPending)
	if err != nil {
		return fmt.Errorf("upserting meeting %q: %w", m.ID, err)
	}
	return nil
}

// SetMeetingStatus updates only the processing status.
func (s *Store) SetMeetingStatus(ctx context.Context, id string, status models.ProcessingStatus) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE meetings SET processing_status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("setting status for meeting %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("meeting %q: %w", id, ErrNotFound)
	}
	return nil
}

// SetMeetingSummary writes the monolithic summary produced from a packet.
func (s *Store) SetMeetingSummary(ctx context.Context, id, summary string, topics []string) error {
	tj, err := jsonb(topics)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		UPDATE meetings SET summary = $2, topics = $3, updated_at = now() WHERE id = $1`,
		id, summary, tj)
	if err != nil {
		return fmt.Errorf("setting summary for meeting %q: %w", id, err)
	}
	return nil
}

// FinalizeMeeting writes the aggregated topic set and merged participation
// info, and flips the processing status, in one statement.
func (s *Store) FinalizeMeeting(ctx context.Context, id string, topics []string, participation *models.Participation, status models.ProcessingStatus) error {
	tj, err := jsonb(topics)
	if err != nil {
		return err
	}
	var pj []byte
	if !participation.IsEmpty() {
		if pj, err = jsonb(participation); err != nil {
			return err
		}
	}
	_, err = s.q.ExecContext(ctx, `
		UPDATE meetings SET
			topics = $2,
			participation = COALESCE($3, participation),
			processing_status = $4,
			updated_at = now()
		WHERE id = $1`,
		id, tj, pj, status)
	if err != nil {
		return fmt.Errorf("finalizing meeting %q: %w", id, err)
	}
	return nil
}
