// Package process is the queue consumer: it leases jobs, runs the meeting and
// matter handlers, and routes failures back through the queue with an
// explicit retryability classification.
package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opencivics/gavel/pkg/config"
	"github.com/opencivics/gavel/pkg/extract"
	"github.com/opencivics/gavel/pkg/ident"
	"github.com/opencivics/gavel/pkg/llm"
	"github.com/opencivics/gavel/pkg/models"
	"github.com/opencivics/gavel/pkg/queue"
	"github.com/opencivics/gavel/pkg/store"
)

// Processor is one logical worker. Multiple instances may run against the
// same database; the queue's lease guarantees keep them from colliding.
type Processor struct {
	store      *store.Store
	queue      *queue.Queue
	extractor  extract.Extractor
	summarizer llm.Summarizer
	hasher     *ident.AttachmentHasher
	queueCfg   *config.QueueConfig
	processCfg *config.ProcessConfig
	workerID   string
}

// New wires a processor. summarizer may be nil when no API key is configured;
// every job then fails non-retryably until credentials appear.
func New(st *store.Store, q *queue.Queue, extractor extract.Extractor, summarizer llm.Summarizer, queueCfg *config.QueueConfig, processCfg *config.ProcessConfig) *Processor {
	return &Processor{
		store:      st,
		queue:      q,
		extractor:  extractor,
		summarizer: summarizer,
		hasher:     ident.NewAttachmentHasher(nil),
		queueCfg:   queueCfg,
		processCfg: processCfg,
		workerID:   "processor-" + uuid.NewString()[:8],
	}
}

// Run is the main loop: recover stale leases, then lease-process-repeat until
// ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	if _, err := p.queue.RecoverStale(ctx, p.queueCfg.StaleLeaseThreshold); err != nil {
		return fmt.Errorf("recovering stale leases: %w", err)
	}
	slog.Info("Processor started", "worker_id", p.workerID)

	for {
		if err := ctx.Err(); err != nil {
			slog.Info("Processor stopping", "worker_id", p.workerID)
			return nil
		}

		job, err := p.queue.Lease(ctx, p.workerID)
		if errors.Is(err, queue.ErrNoJobsAvailable) {
			if !sleep(ctx, p.queueCfg.PollInterval) {
				return nil
			}
			continue
		}
		if err != nil {
			slog.Error("Queue lease failed", "error", err)
			if !sleep(ctx, p.queueCfg.PollBackoff) {
				return nil
			}
			continue
		}

		if err := p.ProcessJob(ctx, job); err != nil {
			if !sleep(ctx, p.queueCfg.ErrorBackoff) {
				return nil
			}
		}
	}
}

// Drain processes jobs until none remain, restricted to one city's jobs when
// banana is non-empty. Used by the one-shot sync-and-process command.
func (p *Processor) Drain(ctx context.Context, banana string) error {
	for {
		var (
			job *models.QueueJob
			err error
		)
		if banana == "" {
			job, err = p.queue.Lease(ctx, p.workerID)
		} else {
			job, err = p.queue.LeaseCity(ctx, p.workerID, banana)
		}
		if errors.Is(err, queue.ErrNoJobsAvailable) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := p.ProcessJob(ctx, job); err != nil {
			slog.Warn("Job failed during drain", "job_id", job.ID, "error", err)
		}
	}
}

// ProcessJob dispatches one leased job and settles it with the queue.
// Returns the handler error, already routed through Complete/Fail.
func (p *Processor) ProcessJob(ctx context.Context, job *models.QueueJob) error {
	start := time.Now()
	err := p.dispatch(ctx, job)
	if err == nil {
		if cerr := p.queue.Complete(ctx, job.ID); cerr != nil {
			slog.Error("Failed to complete job", "job_id", job.ID, "error", cerr)
			return cerr
		}
		slog.Info("Job completed", "job_id", job.ID, "job_type", job.Type,
			"duration", time.Since(start).Round(time.Millisecond))
		return nil
	}

	retryable := classify(err)
	slog.Error("Job failed", "job_id", job.ID, "job_type", job.Type,
		"retryable", retryable, "error", err)
	if ferr := p.queue.Fail(ctx, job.ID, err.Error(), retryable); ferr != nil {
		slog.Error("Failed to record job failure", "job_id", job.ID, "error", ferr)
	}
	return err
}

func (p *Processor) dispatch(ctx context.Context, job *models.QueueJob) error {
	switch job.Type {
	case models.JobTypeMeeting:
		payload, err := job.MeetingPayload()
		if err != nil {
			return nonRetryable(err)
		}
		return p.processMeeting(ctx, payload.MeetingID)
	case models.JobTypeMatter:
		payload, err := job.MatterPayload()
		if err != nil {
			return nonRetryable(err)
		}
		return p.processMatter(ctx, payload)
	default:
		return nonRetryable(fmt.Errorf("unknown job type %q", job.Type))
	}
}

// errNonRetryable wraps errors that must not re-enter the queue.
type errNonRetryable struct{ err error }

func (e *errNonRetryable) Error() string { return e.err.Error() }
func (e *errNonRetryable) Unwrap() error { return e.err }

func nonRetryable(err error) error { return &errNonRetryable{err: err} }

// classify decides retryability: missing credentials and validation errors
// are permanent, everything else (network, extractor, LLM transients) gets
// the retry ladder.
func classify(err error) bool {
	var nr *errNonRetryable
	if errors.As(err, &nr) {
		return false
	}
	if errors.Is(err, llm.ErrUnavailable) {
		return false
	}
	if store.IsValidationError(err) {
		return false
	}
	return true
}

// summarizerReady returns ErrUnavailable when no summarizer is configured.
func (p *Processor) summarizerReady() error {
	if p.summarizer == nil {
		return llm.ErrUnavailable
	}
	return nil
}

// sleep waits d or until ctx is done; reports whether to keep running.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
