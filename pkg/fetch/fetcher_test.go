package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivics/gavel/pkg/config"
	"github.com/opencivics/gavel/pkg/ingest"
	"github.com/opencivics/gavel/pkg/models"
	"github.com/opencivics/gavel/pkg/queue"
	"github.com/opencivics/gavel/pkg/ratelimit"
	"github.com/opencivics/gavel/pkg/store"
	testdb "github.com/opencivics/gavel/test/database"
)

func fastFetchConfig() *config.FetchConfig {
	cfg := config.DefaultFetchConfig()
	cfg.VendorMinDelay = time.Millisecond
	cfg.PartitionIdleMin = time.Millisecond
	cfg.PartitionIdleMax = 2 * time.Millisecond
	return cfg
}

func newTestFetcher(t *testing.T, adapters map[string]VendorAdapter) (*Fetcher, *store.Store) {
	db := testdb.SetupTestDB(t)
	st := store.New(db)
	q := queue.New(db, config.DefaultQueueConfig())
	orch := ingest.NewOrchestrator(st, q, nil)
	cfg := fastFetchConfig()
	limiter := ratelimit.New(cfg.VendorMinDelay, cfg.VendorBurst)
	return New(st, orch, limiter, adapters, cfg), st
}

func oneMeeting(title string) AdapterFunc {
	return func(_ context.Context, city *models.City, _ time.Time) ([]models.MeetingDraft, error) {
		return []models.MeetingDraft{{
			VendorKey: "evt-1",
			Title:     title,
			Date:      time.Now().UTC(),
			Items: []models.AgendaItemDraft{
				{VendorKey: "it-1", Title: "Consent Calendar Item", Sequence: 1},
			},
		}}, nil
	}
}

func TestSyncPass(t *testing.T) {
	f, st := newTestFetcher(t, map[string]VendorAdapter{
		"granicus": oneMeeting("City Council"),
		"legistar": oneMeeting("Board of Supervisors"),
	})
	ctx := context.Background()

	for _, c := range []models.City{
		{Banana: "paloaltoCA", Vendor: "granicus", Active: true},
		{Banana: "sfCA", Vendor: "legistar", Active: true},
	} {
		require.NoError(t, st.UpsertCity(ctx, &c))
	}

	results, err := f.SyncPass(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "success", r.Status, r.Banana)
		assert.Equal(t, 1, r.MeetingsFound)
		assert.Equal(t, 1, r.ItemsStored)
	}

	// Sync bookkeeping: last_synced_at advanced, run rows recorded.
	statuses, err := st.SyncStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	for _, s := range statuses {
		require.NotNil(t, s.LastSyncedAt, s.Banana)
		require.NotNil(t, s.LastStatus)
		assert.Equal(t, "success", *s.LastStatus)
	}
}

func TestSyncPass_FailedCityDoesNotAbort(t *testing.T) {
	f, st := newTestFetcher(t, map[string]VendorAdapter{
		"granicus": AdapterFunc(func(_ context.Context, city *models.City, _ time.Time) ([]models.MeetingDraft, error) {
			if city.Banana == "brokenCA" {
				return nil, errors.New("portal returned 502")
			}
			return oneMeeting("City Council")(nil, city, time.Time{})
		}),
	})
	ctx := context.Background()

	require.NoError(t, st.UpsertCity(ctx, &models.City{Banana: "brokenCA", Vendor: "granicus", Active: true}))
	require.NoError(t, st.UpsertCity(ctx, &models.City{Banana: "paloaltoCA", Vendor: "granicus", Active: true}))

	results, err := f.SyncPass(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byCity := map[string]models.SyncResult{}
	for _, r := range results {
		byCity[r.Banana] = r
	}
	assert.Equal(t, "failed", byCity["brokenCA"].Status)
	assert.Contains(t, byCity["brokenCA"].Error, "502")
	assert.Equal(t, "success", byCity["paloaltoCA"].Status)

	// Failure must not advance last_synced_at: the city is due again.
	broken, err := st.GetCity(ctx, "brokenCA")
	require.NoError(t, err)
	assert.Nil(t, broken.LastSyncedAt)
}

func TestSyncPass_SchedulePolicySkipsFreshCities(t *testing.T) {
	calls := 0
	f, st := newTestFetcher(t, map[string]VendorAdapter{
		"granicus": AdapterFunc(func(_ context.Context, city *models.City, _ time.Time) ([]models.MeetingDraft, error) {
			calls++
			return nil, nil
		}),
	})
	ctx := context.Background()

	require.NoError(t, st.UpsertCity(ctx, &models.City{Banana: "freshCA", Vendor: "granicus", Active: true}))
	require.NoError(t, st.TouchLastSynced(ctx, "freshCA", time.Now()))

	results, err := f.SyncPass(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "skipped", results[0].Status)
	assert.Zero(t, calls)
}

func TestSyncCityNow_BypassesSchedule(t *testing.T) {
	f, st := newTestFetcher(t, map[string]VendorAdapter{
		"granicus": oneMeeting("City Council"),
	})
	ctx := context.Background()

	require.NoError(t, st.UpsertCity(ctx, &models.City{Banana: "freshCA", Vendor: "granicus", Active: true}))
	require.NoError(t, st.TouchLastSynced(ctx, "freshCA", time.Now()))

	res, err := f.SyncCityNow(ctx, "freshCA")
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, 1, res.MeetingsFound)

	_, err = f.SyncCityNow(ctx, "missingCA")
	require.Error(t, err)
}

func TestSyncDue(t *testing.T) {
	cfg := config.DefaultFetchConfig()
	now := time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)
	past := func(d time.Duration) *time.Time { ts := now.Add(-d); return &ts }

	tests := []struct {
		name       string
		lastSynced *time.Time
		activity   int
		want       bool
	}{
		{"never synced", nil, 0, true},
		{"high activity due after 12h", past(13 * time.Hour), 8, true},
		{"high activity fresh", past(11 * time.Hour), 8, false},
		{"medium activity due after 24h", past(25 * time.Hour), 5, true},
		{"medium activity fresh", past(13 * time.Hour), 5, false},
		{"low activity fresh for days", past(6 * 24 * time.Hour), 1, false},
		{"low activity due after a week", past(8 * 24 * time.Hour), 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, syncDue(cfg, tt.lastSynced, tt.activity, now))
		})
	}
}

func TestOrderByActivity(t *testing.T) {
	cities := []cityActivity{
		{city: &models.City{Banana: "quietCA"}, activity: 1},
		{city: &models.City{Banana: "busyCA"}, activity: 12},
		{city: &models.City{Banana: "alsoquietCA"}, activity: 1},
	}
	orderByActivity(cities)
	assert.Equal(t, "busyCA", cities[0].city.Banana)
	assert.Equal(t, "alsoquietCA", cities[1].city.Banana)
	assert.Equal(t, "quietCA", cities[2].city.Banana)
}
