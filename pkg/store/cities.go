package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opencivics/gavel/pkg/models"
)

const cityColumns = `banana, name, vendor, config_json, active, last_synced_at, created_at, updated_at`

func scanCity(row interface{ Scan(...any) error }) (*models.City, error) {
	var (
		c      models.City
		config []byte
	)
	if err := row.Scan(&c.Banana, &c.Name, &c.Vendor, &config, &c.Active, &c.LastSyncedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := scanJSON(config, &c.Config); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListActiveCities returns every active city, ordered by slug.
func (s *Store) ListActiveCities(ctx context.Context) ([]*models.City, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+cityColumns+` FROM cities WHERE active ORDER BY banana`)
	if err != nil {
		return nil, fmt.Errorf("listing active cities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cities []*models.City
	for rows.Next() {
		c, err := scanCity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning city: %w", err)
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

// GetCity returns one city by slug.
func (s *Store) GetCity(ctx context.Context, banana string) (*models.City, error) {
	c, err := scanCity(s.q.QueryRowContext(ctx,
		`SELECT `+cityColumns+` FROM cities WHERE banana = $1`, banana))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("city %q: %w", banana, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting city %q: %w", banana, err)
	}
	return c, nil
}

// UpsertCity creates or updates a city row (provisioning path and tests).
func (s *Store) UpsertCity(ctx context.Context, c *models.City) error {
	if !models.ValidBanana(c.Banana) {
		return NewValidationError("banana", fmt.Sprintf("%q is not a valid city slug", c.Banana))
	}
	config, err := jsonb(c.Config)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO cities (banana, name, vendor, config_json, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (banana) DO UPDATE SET
			name = EXCLUDED.name,
			vendor = EXCLUDED.vendor,
			config_json = EXCLUDED.config_json,
			active = EXCLUDED.active,
			updated_at = now()`,
		c.Banana, c.Name, c.Vendor, config, c.Active)
	if err != nil {
		return fmt.Errorf("upserting city %q: %w", c.Banana, err)
	}
	return nil
}

// TouchLastSynced records a completed sync attempt for the city.
func (s *Store) TouchLastSynced(ctx context.Context, banana string, at time.Time) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE cities SET last_synced_at = $2, updated_at = now() WHERE banana = $1`,
		banana, at)
	if err != nil {
		return fmt.Errorf("touching last_synced_at for %q: %w", banana, err)
	}
	return nil
}

// MeetingCountSince counts a city's meetings dated on or after the cutoff.
// Drives the activity-based sync schedule.
func (s *Store) MeetingCountSince(ctx context.Context, banana string, since time.Time) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM meetings WHERE banana = $1 AND date >= $2`,
		banana, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting meetings for %q: %w", banana, err)
	}
	return n, nil
}

// RecordSyncRun persists the outcome of one city sync.
func (s *Store) RecordSyncRun(ctx context.Context, r *models.SyncResult) error {
	var errMsg *string
	if r.Error != "" {
		errMsg = &r.Error
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sync_runs (banana, status, meetings_found, meetings_processed, items_stored, duration_seconds, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.Banana, r.Status, r.MeetingsFound, r.MeetingsProcessed, r.ItemsStored,
		r.Duration.Seconds(), errMsg)
	if err != nil {
		return fmt.Errorf("recording sync run for %q: %w", r.Banana, err)
	}
	return nil
}

// PruneSyncRuns deletes sync run records older than the retention window.
func (s *Store) PruneSyncRuns(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM sync_runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning sync runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CitySyncStatus is one row of the operator status report.
type CitySyncStatus struct {
	Banana       string
	Vendor       string
	LastSyncedAt *time.Time
	LastStatus   *string
}

// SyncStatuses returns per-city last-sync information for the status command.
func (s *Store) SyncStatuses(ctx context.Context) ([]CitySyncStatus, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT c.banana, c.vendor, c.last_synced_at,
		       (SELECT sr.status FROM sync_runs sr
		        WHERE sr.banana = c.banana ORDER BY sr.created_at DESC LIMIT 1)
		FROM cities c
		WHERE c.active
		ORDER BY c.banana`)
	if err != nil {
		return nil, fmt.Errorf("querying sync statuses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []CitySyncStatus
	for rows.Next() {
		var st CitySyncStatus
		if err := rows.Scan(&st.Banana, &st.Vendor, &st.LastSyncedAt, &st.LastStatus); err != nil {
			return nil, fmt.Errorf("scanning sync status: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
