// Package conductor runs the whole pipeline in one process: a periodic sync
// loop feeding the queue and a processor loop draining it. Either loop ending
// early does not stop the other; shutdown is by context cancellation.
package conductor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/opencivics/gavel/pkg/config"
	"github.com/opencivics/gavel/pkg/models"
)

// Syncer runs one sync pass over all active cities.
type Syncer interface {
	SyncPass(ctx context.Context) ([]models.SyncResult, error)
}

// Worker is the long-running queue consumer.
type Worker interface {
	Run(ctx context.Context) error
}

// Conductor couples the sync scheduler and the processor.
type Conductor struct {
	syncer   Syncer
	worker   Worker
	interval time.Duration
}

// New wires a conductor that syncs every cfg.SyncInterval.
func New(syncer Syncer, worker Worker, cfg *config.FetchConfig) *Conductor {
	return &Conductor{syncer: syncer, worker: worker, interval: cfg.SyncInterval}
}

// Run blocks until ctx is cancelled and both loops have wound down. The
// returned error is the processor's, since the sync loop only logs its
// failures and tries again next interval. A nil worker runs the sync loop
// alone (the fetcher-only mode).
func (c *Conductor) Run(ctx context.Context) error {
	slog.Info("Conductor starting", "sync_interval", c.interval)

	var (
		wg        sync.WaitGroup
		workerErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.syncLoop(ctx)
	}()
	if c.worker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			workerErr = c.worker.Run(ctx)
		}()
	}

	wg.Wait()
	slog.Info("Conductor stopped")
	return workerErr
}

func (c *Conductor) syncLoop(ctx context.Context) {
	for {
		start := time.Now()
		results, err := c.syncer.SyncPass(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			slog.Error("Sync pass failed", "error", err)
		default:
			slog.Info("Sync pass finished", "cities", len(results),
				"duration", time.Since(start).Round(time.Second))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
	}
}
