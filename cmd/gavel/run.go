package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opencivics/gavel/pkg/cleanup"
	"github.com/opencivics/gavel/pkg/conductor"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newDaemonCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the sync and processing loops together",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			ctx, stop := signalContext()
			defer stop()
			a, err := openApp(ctx, *configDir)
			if err != nil {
				return err
			}
			defer a.close()

			janitor := cleanup.NewService(a.cfg.Retention, a.queue, a.store)
			janitor.Start(ctx)
			defer janitor.Stop()

			return conductor.New(a.fetcher(), a.processor(), a.cfg.Fetch).Run(ctx)
		},
	}
}

func newFetcherCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fetcher",
		Short: "Run the periodic sync loop only",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			ctx, stop := signalContext()
			defer stop()
			a, err := openApp(ctx, *configDir)
			if err != nil {
				return err
			}
			defer a.close()
			return conductor.New(a.fetcher(), nil, a.cfg.Fetch).Run(ctx)
		},
	}
}

func newProcessorCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "processor",
		Short: "Run the queue processing loop only",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			ctx, stop := signalContext()
			defer stop()
			a, err := openApp(ctx, *configDir)
			if err != nil {
				return err
			}
			defer a.close()
			return a.processor().Run(ctx)
		},
	}
}
