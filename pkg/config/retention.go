package config

import "time"

// RetentionConfig controls the background janitor that keeps the queue and
// sync history from growing without bound.
type RetentionConfig struct {
	// JobRetention is how long terminal queue rows (completed, failed,
	// dead_letter) are kept before being purged.
	JobRetention time.Duration `mapstructure:"job_retention"`

	// SyncRunRetention is how long per-city sync run records are kept.
	SyncRunRetention time.Duration `mapstructure:"sync_run_retention"`

	// CleanupInterval is the period of the janitor loop.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		JobRetention:     30 * 24 * time.Hour,
		SyncRunRetention: 90 * 24 * time.Hour,
		CleanupInterval:  6 * time.Hour,
	}
}
