// Package cleanup provides data retention for the pipeline's bookkeeping
// tables.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/opencivics/gavel/pkg/config"
)

// JobPurger deletes terminal queue rows past retention.
type JobPurger interface {
	PurgeTerminal(ctx context.Context, retention time.Duration) (int, error)
}

// RunPruner deletes sync run records past retention.
type RunPruner interface {
	PruneSyncRuns(ctx context.Context, retention time.Duration) (int, error)
}

// Service periodically enforces retention policies:
//   - Purges terminal queue jobs (completed, failed, dead_letter)
//   - Prunes old per-city sync run records
//
// All operations are idempotent and safe to run from multiple replicas.
type Service struct {
	cfg    *config.RetentionConfig
	purger JobPurger
	pruner RunPruner

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a retention service.
func NewService(cfg *config.RetentionConfig, purger JobPurger, pruner RunPruner) *Service {
	return &Service{cfg: cfg, purger: purger, pruner: pruner}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"job_retention", s.cfg.JobRetention,
		"sync_run_retention", s.cfg.SyncRunRetention,
		"interval", s.cfg.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.purgeTerminalJobs(ctx)
	s.pruneSyncRuns(ctx)
}

func (s *Service) purgeTerminalJobs(ctx context.Context) {
	count, err := s.purger.PurgeTerminal(ctx, s.cfg.JobRetention)
	if err != nil {
		slog.Error("Retention: queue purge failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: purged terminal jobs", "count", count)
	}
}

func (s *Service) pruneSyncRuns(ctx context.Context) {
	count, err := s.pruner.PruneSyncRuns(ctx, s.cfg.SyncRunRetention)
	if err != nil {
		slog.Error("Retention: sync run prune failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: pruned sync runs", "count", count)
	}
}
