package config

import "time"

// FetchConfig controls the sync scheduler: vendor pacing, per-partition
// concurrency, and the activity-based per-city schedule policy.
type FetchConfig struct {
	// CitySyncConcurrency is the number of concurrent city workers within a
	// vendor partition.
	CitySyncConcurrency int `mapstructure:"city_sync_concurrency"`

	// VendorMinDelay is the minimum spacing between requests to one vendor.
	VendorMinDelay time.Duration `mapstructure:"vendor_min_delay"`

	// VendorBurst is the token-bucket burst allowance per vendor.
	VendorBurst int `mapstructure:"vendor_burst"`

	// PartitionIdleMin/Max bound the idle period between vendor partitions.
	PartitionIdleMin time.Duration `mapstructure:"partition_idle_min"`
	PartitionIdleMax time.Duration `mapstructure:"partition_idle_max"`

	// SyncInterval is the period of the conductor's sync loop.
	SyncInterval time.Duration `mapstructure:"sync_interval"`

	// Activity tiers: cities with at least HighActivityMeetings meetings in
	// the last 30 days sync every HighActivityInterval, and so on. Cities
	// below MediumActivityMeetings (or never synced) use LowActivityInterval.
	HighActivityMeetings   int           `mapstructure:"high_activity_meetings"`
	MediumActivityMeetings int           `mapstructure:"medium_activity_meetings"`
	HighActivityInterval   time.Duration `mapstructure:"high_activity_interval"`
	MediumActivityInterval time.Duration `mapstructure:"medium_activity_interval"`
	LowActivityInterval    time.Duration `mapstructure:"low_activity_interval"`
}

// DefaultFetchConfig returns the built-in fetch defaults.
func DefaultFetchConfig() *FetchConfig {
	return &FetchConfig{
		CitySyncConcurrency:    2,
		VendorMinDelay:         4 * time.Second,
		VendorBurst:            1,
		PartitionIdleMin:       30 * time.Second,
		PartitionIdleMax:       40 * time.Second,
		SyncInterval:           24 * time.Hour,
		HighActivityMeetings:   8,
		MediumActivityMeetings: 4,
		HighActivityInterval:   12 * time.Hour,
		MediumActivityInterval: 24 * time.Hour,
		LowActivityInterval:    7 * 24 * time.Hour,
	}
}
