// Package fetch schedules and runs city syncs. Active cities are partitioned
// by vendor, ordered by recent activity, paced by the per-vendor rate
// limiter, and synced by a small worker group per partition. An idle period
// separates partitions so no platform sees back-to-back bursts.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opencivics/gavel/pkg/config"
	"github.com/opencivics/gavel/pkg/ingest"
	"github.com/opencivics/gavel/pkg/models"
	"github.com/opencivics/gavel/pkg/ratelimit"
	"github.com/opencivics/gavel/pkg/store"
)

// Fetcher runs sync passes over all active cities.
type Fetcher struct {
	store    *store.Store
	orch     *ingest.Orchestrator
	limiter  *ratelimit.VendorLimiter
	adapters map[string]VendorAdapter
	cfg      *config.FetchConfig
	now      func() time.Time
}

// New wires a fetcher. adapters maps vendor name to its adapter.
func New(st *store.Store, orch *ingest.Orchestrator, limiter *ratelimit.VendorLimiter, adapters map[string]VendorAdapter, cfg *config.FetchConfig) *Fetcher {
	return &Fetcher{
		store:    st,
		orch:     orch,
		limiter:  limiter,
		adapters: adapters,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SyncPass syncs every eligible active city once, vendor partition by vendor
// partition. Per-city failures are recorded and do not abort the pass;
// context cancellation does.
func (f *Fetcher) SyncPass(ctx context.Context) ([]models.SyncResult, error) {
	cities, err := f.store.ListActiveCities(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active cities: %w", err)
	}

	partitions := make(map[string][]*models.City)
	for _, c := range cities {
		partitions[c.Vendor] = append(partitions[c.Vendor], c)
	}
	vendors := make([]string, 0, len(partitions))
	for v := range partitions {
		vendors = append(vendors, v)
	}
	sort.Strings(vendors)

	var (
		mu      sync.Mutex
		results []models.SyncResult
		failed  []string
	)
	for i, vendor := range vendors {
		if i > 0 {
			if err := f.partitionIdle(ctx); err != nil {
				return results, err
			}
		}

		ordered := make([]cityActivity, 0, len(partitions[vendor]))
		for _, c := range partitions[vendor] {
			n, err := f.store.MeetingCountSince(ctx, c.Banana, f.now().AddDate(0, 0, -30))
			if err != nil {
				return results, fmt.Errorf("computing activity for %q: %w", c.Banana, err)
			}
			ordered = append(ordered, cityActivity{city: c, activity: n})
		}
		orderByActivity(ordered)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(f.cfg.CitySyncConcurrency)
		for _, ca := range ordered {
			if !syncDue(f.cfg, ca.city.LastSyncedAt, ca.activity, f.now()) {
				mu.Lock()
				results = append(results, models.SyncResult{Banana: ca.city.Banana, Status: "skipped"})
				mu.Unlock()
				continue
			}
			city := ca.city
			g.Go(func() error {
				res := f.syncCity(gctx, vendor, city)
				mu.Lock()
				results = append(results, res)
				if res.Status == "failed" {
					failed = append(failed, res.Banana)
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		slog.Warn("Sync pass finished with failures", "failed_cities", failed)
	}
	return results, nil
}

// SyncCityNow syncs one city immediately, bypassing the schedule policy.
func (f *Fetcher) SyncCityNow(ctx context.Context, banana string) (models.SyncResult, error) {
	city, err := f.store.GetCity(ctx, banana)
	if err != nil {
		return models.SyncResult{}, err
	}
	res := f.syncCity(ctx, city.Vendor, city)
	if res.Status == "failed" {
		return res, fmt.Errorf("syncing %s: %s", banana, res.Error)
	}
	return res, nil
}

func (f *Fetcher) syncCity(ctx context.Context, vendor string, city *models.City) models.SyncResult {
	start := f.now()
	res := models.SyncResult{Banana: city.Banana, Status: "failed"}
	defer func() {
		res.Duration = f.now().Sub(start)
		f.record(ctx, &res)
	}()

	adapter, ok := f.adapters[vendor]
	if !ok {
		res.Error = fmt.Sprintf("no adapter registered for vendor %q", vendor)
		return res
	}
	if err := f.limiter.WaitIfNeeded(ctx, vendor); err != nil {
		res.Error = err.Error()
		return res
	}

	var since time.Time
	if city.LastSyncedAt != nil {
		since = *city.LastSyncedAt
	}
	drafts, err := adapter.FetchMeetings(ctx, city, since)
	if err != nil {
		res.Error = err.Error()
		slog.Error("Vendor fetch failed", "banana", city.Banana, "vendor", vendor, "error", err)
		return res
	}
	res.MeetingsFound = len(drafts)

	stats, err := f.orch.SyncCity(ctx, city, drafts)
	if stats != nil {
		res.MeetingsProcessed = stats.MeetingsStored
		res.ItemsStored = stats.ItemsStored
	}
	if err != nil {
		res.Error = err.Error()
		slog.Error("City sync failed", "banana", city.Banana, "error", err)
		return res
	}

	res.Status = "success"
	slog.Info("City synced", "banana", city.Banana,
		"meetings_found", res.MeetingsFound, "items_stored", res.ItemsStored)
	return res
}

// record persists the sync outcome. last_synced_at advances only on success,
// so failed cities come due again on the next pass.
func (f *Fetcher) record(ctx context.Context, res *models.SyncResult) {
	if err := f.store.RecordSyncRun(ctx, res); err != nil {
		slog.Error("Failed to record sync run", "banana", res.Banana, "error", err)
	}
	if res.Status != "success" {
		return
	}
	if err := f.store.TouchLastSynced(ctx, res.Banana, f.now()); err != nil {
		slog.Error("Failed to update last_synced_at", "banana", res.Banana, "error", err)
	}
}

// partitionIdle sleeps a jittered interval between vendor partitions,
// returning early when ctx is cancelled.
func (f *Fetcher) partitionIdle(ctx context.Context) error {
	idle := f.cfg.PartitionIdleMin
	if jitter := f.cfg.PartitionIdleMax - f.cfg.PartitionIdleMin; jitter > 0 {
		idle += time.Duration(rand.Int63n(int64(jitter)))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(idle):
		return nil
	}
}
