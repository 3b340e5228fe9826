package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opencivics/gavel/pkg/models"
)

var statusOrder = []models.JobStatus{
	models.JobPending,
	models.JobProcessing,
	models.JobCompleted,
	models.JobFailed,
	models.JobDeadLetter,
}

func newStatusCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue depth and per-city sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()
			a, err := openApp(ctx, *configDir)
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := a.queue.Stats(ctx)
			if err != nil {
				return err
			}
			cities, err := a.store.SyncStatuses(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Queue:")
			for _, s := range statusOrder {
				fmt.Fprintf(out, "  %-12s %d\n", s, stats[s])
			}

			fmt.Fprintln(out, "\nCities:")
			w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "  BANANA\tVENDOR\tLAST SYNCED\tLAST RUN")
			for _, c := range cities {
				lastSynced, lastRun := "never", "-"
				if c.LastSyncedAt != nil {
					lastSynced = c.LastSyncedAt.Format("2006-01-02 15:04")
				}
				if c.LastStatus != nil {
					lastRun = *c.LastStatus
				}
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", c.Banana, c.Vendor, lastSynced, lastRun)
			}
			return w.Flush()
		},
	}
}
