// Gavel harvests municipal legislative meetings from vendor platforms,
// normalizes them into a matter-centric model, and summarizes agenda content
// through a durable work queue.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/opencivics/gavel/pkg/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func newRootCmd() *cobra.Command {
	var configDir string

	root := &cobra.Command{
		Use:          "gavel",
		Short:        "Legislative meeting ingestion pipeline",
		Version:      version.Full(),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"directory holding gavel.yaml and .env")

	root.AddCommand(
		newDaemonCmd(&configDir),
		newFetcherCmd(&configDir),
		newProcessorCmd(&configDir),
		newSyncCityCmd(&configDir),
		newSyncAndProcessCmd(&configDir),
		newStatusCmd(&configDir),
	)
	return root
}
