package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSyncCityCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-city <banana>",
		Short: "Sync one city immediately, bypassing the schedule policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			a, err := openApp(ctx, *configDir)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.fetcher().SyncCityNow(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"%s: %s — %d meetings found, %d stored, %d items, in %s\n",
				res.Banana, res.Status, res.MeetingsFound, res.MeetingsProcessed,
				res.ItemsStored, res.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

func newSyncAndProcessCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-and-process-city <banana>",
		Short: "Sync one city, then drain the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			a, err := openApp(ctx, *configDir)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.fetcher().SyncCityNow(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s synced: %d meetings found, %d items\n",
				res.Banana, res.MeetingsFound, res.ItemsStored)

			if err := a.processor().Drain(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s queue drained\n", args[0])
			return nil
		},
	}
}
