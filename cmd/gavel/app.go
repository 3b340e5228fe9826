package main

import (
	"context"
	"log/slog"

	"github.com/opencivics/gavel/pkg/config"
	"github.com/opencivics/gavel/pkg/database"
	"github.com/opencivics/gavel/pkg/extract"
	"github.com/opencivics/gavel/pkg/fetch"
	"github.com/opencivics/gavel/pkg/ident"
	"github.com/opencivics/gavel/pkg/ingest"
	"github.com/opencivics/gavel/pkg/llm"
	"github.com/opencivics/gavel/pkg/process"
	"github.com/opencivics/gavel/pkg/queue"
	"github.com/opencivics/gavel/pkg/ratelimit"
	"github.com/opencivics/gavel/pkg/store"
	"github.com/opencivics/gavel/pkg/version"
)

// app holds the shared wiring behind every subcommand: configuration, the
// database pool, and the repository and queue layers over it.
type app struct {
	cfg    *config.Config
	client *database.Client
	store  *store.Store
	queue  *queue.Queue
}

func openApp(ctx context.Context, configDir string) (*app, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Logging.Setup(); err != nil {
		return nil, err
	}
	slog.Info("Starting gavel", "version", version.Full(), "config_dir", configDir)

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	client, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		return nil, err
	}
	slog.Info("Connected to PostgreSQL database")

	return &app{
		cfg:    cfg,
		client: client,
		store:  store.New(client.DB()),
		queue:  queue.New(client.DB(), cfg.Queue),
	}, nil
}

func (a *app) close() {
	if err := a.client.Close(); err != nil {
		slog.Error("Error closing database client", "error", err)
	}
}

// vendorAdapters is the registration point for vendor parsing components,
// which ship separately from the pipeline. A city whose vendor has no adapter
// fails its sync with a recorded per-city error instead of crashing the pass.
func vendorAdapters() map[string]fetch.VendorAdapter {
	return map[string]fetch.VendorAdapter{}
}

func (a *app) fetcher() *fetch.Fetcher {
	limiter := ratelimit.New(a.cfg.Fetch.VendorMinDelay, a.cfg.Fetch.VendorBurst)
	orch := ingest.NewOrchestrator(a.store, a.queue, ident.NewAttachmentHasher(nil))
	return fetch.New(a.store, orch, limiter, vendorAdapters(), a.cfg.Fetch)
}

func (a *app) processor() *process.Processor {
	var summarizer llm.Summarizer
	if s, err := llm.NewAnthropic(a.cfg.LLM); err != nil {
		slog.Warn("Summarizer unavailable, jobs will fail until credentials are configured", "error", err)
	} else {
		summarizer = s
	}
	return process.New(a.store, a.queue, extract.NewHTTPExtractor(a.cfg.Process),
		summarizer, a.cfg.Queue, a.cfg.Process)
}
