// Package queue implements the durable priority queue that hands work from
// the sync orchestrator to the processor. Jobs live in the queue table;
// leasing is a single UPDATE ... RETURNING with SKIP LOCKED so concurrent
// workers never double-lease.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opencivics/gavel/pkg/config"
	"github.com/opencivics/gavel/pkg/models"
)

// Sentinel errors for queue operations.
var (
	// ErrNoJobsAvailable indicates no pending jobs are in the queue.
	ErrNoJobsAvailable = errors.New("no jobs available")

	// ErrJobNotFound indicates the requested job id does not exist.
	ErrJobNotFound = errors.New("job not found")
)

const jobColumns = `id, job_type, payload, dedup_key, banana, priority, status, retry_count, error_message, created_at, started_at, completed_at, failed_at`

// Queue is the durable queue over the shared database.
type Queue struct {
	db  *sql.DB
	cfg *config.QueueConfig
}

// New creates a queue over the connection pool.
func New(db *sql.DB, cfg *config.QueueConfig) *Queue {
	return &Queue{db: db, cfg: cfg}
}

// EnqueueRequest describes a job to enqueue.
type EnqueueRequest struct {
	Type     models.JobType
	Payload  any
	DedupKey string
	Banana   string
	Priority int
}

// Enqueue inserts a job, idempotent on dedup_key. Returns the row id and
// whether a new row was created. An existing row — active or terminal —
// suppresses the enqueue; callers that want to bump priority of an active
// row use UpdatePriority.
func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (int64, bool, error) {
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return 0, false, fmt.Errorf("marshaling payload for %q: %w", req.DedupKey, err)
	}

	var id int64
	err = q.db.QueryRowContext(ctx, `
		INSERT INTO queue (job_type, payload, dedup_key, banana, priority, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		ON CONFLICT (dedup_key) DO NOTHING
		RETURNING id`,
		req.Type, payload, req.DedupKey, req.Banana, req.Priority).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("enqueuing %q: %w", req.DedupKey, err)
	}

	// Deduplicated: report the existing row.
	var existing int64
	var status models.JobStatus
	err = q.db.QueryRowContext(ctx,
		`SELECT id, status FROM queue WHERE dedup_key = $1`, req.DedupKey).
		Scan(&existing, &status)
	if err != nil {
		return 0, false, fmt.Errorf("looking up deduplicated job %q: %w", req.DedupKey, err)
	}
	slog.Debug("Enqueue deduplicated", "dedup_key", req.DedupKey, "existing_id", existing, "status", status)
	return existing, false, nil
}

// Requeue reactivates a terminal job (completed, failed, or dead_letter)
// under the same dedup key with a fresh payload, priority, and retry budget.
// Callers use it when already-finished work must run again, e.g. a matter
// whose attachment set changed after its job completed. Active rows are left
// alone. Returns the row id and whether the row was reactivated.
func (q *Queue) Requeue(ctx context.Context, req EnqueueRequest) (int64, bool, error) {
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return 0, false, fmt.Errorf("marshaling payload for %q: %w", req.DedupKey, err)
	}

	var id int64
	err = q.db.QueryRowContext(ctx, `
		UPDATE queue SET
			status = 'pending',
			payload = $2,
			priority = $3,
			retry_count = 0,
			error_message = NULL,
			started_at = NULL,
			completed_at = NULL,
			failed_at = NULL
		WHERE dedup_key = $1 AND status IN ('completed', 'failed', 'dead_letter')
		RETURNING id`,
		req.DedupKey, payload, req.Priority).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("requeuing %q: %w", req.DedupKey, err)
	}
	slog.Info("Terminal job requeued", "dedup_key", req.DedupKey, "job_id", id)
	return id, true, nil
}

// UpdatePriority changes the priority of a still-pending job.
func (q *Queue) UpdatePriority(ctx context.Context, dedupKey string, priority int) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE queue SET priority = $2 WHERE dedup_key = $1 AND status = 'pending'`,
		dedupKey, priority)
	if err != nil {
		return fmt.Errorf("updating priority of %q: %w", dedupKey, err)
	}
	return nil
}

// Lease atomically claims the highest-priority pending job (FIFO within a
// priority) and flips it to processing. Returns ErrNoJobsAvailable when the
// queue is empty. The whole claim is one statement, so concurrent workers
// cannot lease the same row.
func (q *Queue) Lease(ctx context.Context, workerID string) (*models.QueueJob, error) {
	return q.lease(ctx, workerID, "")
}

// LeaseCity is Lease restricted to one city's jobs. The one-shot
// sync-and-process command drains a single city without consuming the
// rest of the backlog.
func (q *Queue) LeaseCity(ctx context.Context, workerID, banana string) (*models.QueueJob, error) {
	return q.lease(ctx, workerID, banana)
}

func (q *Queue) lease(ctx context.Context, workerID, banana string) (*models.QueueJob, error) {
	cond := ""
	var args []any
	if banana != "" {
		cond = " AND banana = $1"
		args = append(args, banana)
	}
	row := q.db.QueryRowContext(ctx, `
		UPDATE queue SET status = 'processing', started_at = now()
		WHERE id = (
			SELECT id FROM queue
			WHERE status = 'pending'`+cond+`
			ORDER BY priority DESC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns, args...)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoJobsAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("leasing job: %w", err)
	}
	slog.Debug("Job leased", "job_id", job.ID, "job_type", job.Type, "worker_id", workerID, "priority", job.Priority)
	return job, nil
}

// Complete marks a leased job done.
func (q *Queue) Complete(ctx context.Context, jobID int64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE queue SET status = 'completed', completed_at = now() WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("completing job %d: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("completing job %d: no such job", jobID)
	}
	return nil
}

// Fail records a job failure. Non-retryable failures go terminal immediately.
// Retryable failures re-enter the queue with a bumped retry count and a
// priority penalty until MaxRetries is exhausted, then dead-letter.
func (q *Queue) Fail(ctx context.Context, jobID int64, errMsg string, retryable bool) error {
	if !retryable {
		_, err := q.db.ExecContext(ctx, `
			UPDATE queue SET status = 'failed', error_message = $2, failed_at = now()
			WHERE id = $1`, jobID, errMsg)
		if err != nil {
			return fmt.Errorf("failing job %d: %w", jobID, err)
		}
		return nil
	}

	var status models.JobStatus
	err := q.db.QueryRowContext(ctx, `
		UPDATE queue SET
			status = CASE WHEN retry_count < $2 THEN 'pending' ELSE 'dead_letter' END,
			retry_count = CASE WHEN retry_count < $2 THEN retry_count + 1 ELSE retry_count END,
			priority = CASE WHEN retry_count < $2 THEN priority - $3 ELSE priority END,
			failed_at = CASE WHEN retry_count < $2 THEN failed_at ELSE now() END,
			error_message = $4
		WHERE id = $1
		RETURNING status`,
		jobID, q.cfg.MaxRetries, q.cfg.RetryPenalty, errMsg).Scan(&status)
	if err != nil {
		return fmt.Errorf("failing job %d: %w", jobID, err)
	}
	if status == models.JobDeadLetter {
		slog.Warn("Job dead-lettered", "job_id", jobID, "error", errMsg)
	}
	return nil
}

// RecoverStale rescues jobs left in processing by a crashed worker: any lease
// older than threshold is failed-retryable, re-entering the queue (or
// dead-lettering if retries are exhausted). Returns the number recovered.
func (q *Queue) RecoverStale(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := time.Now().Add(-threshold)
	res, err := q.db.ExecContext(ctx, `
		UPDATE queue SET
			status = CASE WHEN retry_count < $2 THEN 'pending' ELSE 'dead_letter' END,
			retry_count = CASE WHEN retry_count < $2 THEN retry_count + 1 ELSE retry_count END,
			priority = CASE WHEN retry_count < $2 THEN priority - $3 ELSE priority END,
			failed_at = CASE WHEN retry_count < $2 THEN failed_at ELSE now() END,
			error_message = 'stale lease recovered'
		WHERE status = 'processing' AND started_at < $1`,
		cutoff, q.cfg.MaxRetries, q.cfg.RetryPenalty)
	if err != nil {
		return 0, fmt.Errorf("recovering stale leases: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		slog.Warn("Recovered stale leases", "count", n, "threshold", threshold)
	}
	return int(n), nil
}

// PurgeTerminal deletes terminal jobs (completed, failed, dead_letter) whose
// terminal timestamp is older than the retention window. Deleting a terminal
// row frees its dedup key, which is safe: re-enqueue decisions are driven by
// the stored meeting and matter state, not by queue history.
func (q *Queue) PurgeTerminal(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM queue
		WHERE status IN ('completed', 'failed', 'dead_letter')
		  AND COALESCE(completed_at, failed_at, created_at) < $1`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging terminal jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Stats returns job counts by status for observability.
func (q *Queue) Stats(ctx context.Context) (map[models.JobStatus]int, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("querying queue stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make(map[models.JobStatus]int)
	for rows.Next() {
		var status models.JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning queue stats: %w", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// GetJob returns one job by id (operator tooling and tests).
func (q *Queue) GetJob(ctx context.Context, jobID int64) (*models.QueueJob, error) {
	job, err := scanJob(q.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM queue WHERE id = $1`, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %d: %w", jobID, ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting job %d: %w", jobID, err)
	}
	return job, nil
}

func scanJob(row interface{ Scan(...any) error }) (*models.QueueJob, error) {
	var (
		j       models.QueueJob
		payload []byte
	)
	if err := row.Scan(&j.ID, &j.Type, &payload, &j.DedupKey, &j.Banana, &j.Priority,
		&j.Status, &j.RetryCount, &j.ErrorMessage, &j.CreatedAt, &j.StartedAt,
		&j.CompletedAt, &j.FailedAt); err != nil {
		return nil, err
	}
	j.Payload = json.RawMessage(payload)
	return &j, nil
}
