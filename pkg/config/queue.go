package config

import "time"

// QueueConfig controls queue polling, retry, and stale-lease recovery.
type QueueConfig struct {
	// MaxRetries is how many times a retryable failure re-enters the queue
	// before the job is dead-lettered.
	MaxRetries int `mapstructure:"max_retries"`

	// RetryPenalty is subtracted from the job's priority on each retryable
	// failure, so flapping jobs sink below fresh work.
	RetryPenalty int `mapstructure:"retry_penalty"`

	// PollInterval is how long the processor sleeps when the queue is empty.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// PollBackoff is the sleep after a queue database error.
	PollBackoff time.Duration `mapstructure:"poll_backoff"`

	// ErrorBackoff is the sleep after a job handler fails.
	ErrorBackoff time.Duration `mapstructure:"error_backoff"`

	// StaleLeaseThreshold: jobs stuck in processing longer than this are
	// recovered on processor startup.
	StaleLeaseThreshold time.Duration `mapstructure:"stale_lease_threshold"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxRetries:          3,
		RetryPenalty:        20,
		PollInterval:        5 * time.Second,
		PollBackoff:         10 * time.Second,
		ErrorBackoff:        10 * time.Second,
		StaleLeaseThreshold: 1 * time.Hour,
	}
}
