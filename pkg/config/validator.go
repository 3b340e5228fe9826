package config

import (
	"errors"
	"fmt"
)

// Validate checks the assembled configuration for values the pipeline cannot
// run with. It does not check the API key: a missing key is a degraded mode
// (processor unavailable), not a startup error for the fetcher.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration is nil")
	}
	if err := validateQueue(cfg.Queue); err != nil {
		return err
	}
	if err := validateFetch(cfg.Fetch); err != nil {
		return err
	}
	if err := validateProcess(cfg.Process); err != nil {
		return err
	}
	if err := validateLLM(cfg.LLM); err != nil {
		return err
	}
	if err := validateRetention(cfg.Retention); err != nil {
		return err
	}
	if cfg.Logging == nil {
		return errors.New("logging configuration is nil")
	}
	if _, err := ParseLevel(cfg.Logging.Level); err != nil {
		return err
	}
	return nil
}

func validateQueue(q *QueueConfig) error {
	if q == nil {
		return errors.New("queue configuration is nil")
	}
	if q.MaxRetries < 0 {
		return fmt.Errorf("queue.max_retries must be non-negative, got %d", q.MaxRetries)
	}
	if q.RetryPenalty < 0 {
		return fmt.Errorf("queue.retry_penalty must be non-negative, got %d", q.RetryPenalty)
	}
	if q.PollInterval <= 0 {
		return errors.New("queue.poll_interval must be positive")
	}
	if q.PollBackoff <= 0 {
		return errors.New("queue.poll_backoff must be positive")
	}
	if q.ErrorBackoff <= 0 {
		return errors.New("queue.error_backoff must be positive")
	}
	if q.StaleLeaseThreshold <= 0 {
		return errors.New("queue.stale_lease_threshold must be positive")
	}
	return nil
}

func validateFetch(f *FetchConfig) error {
	if f == nil {
		return errors.New("fetch configuration is nil")
	}
	if f.CitySyncConcurrency < 1 {
		return fmt.Errorf("fetch.city_sync_concurrency must be at least 1, got %d", f.CitySyncConcurrency)
	}
	if f.VendorMinDelay <= 0 {
		return errors.New("fetch.vendor_min_delay must be positive")
	}
	if f.VendorBurst < 1 {
		return fmt.Errorf("fetch.vendor_burst must be at least 1, got %d", f.VendorBurst)
	}
	if f.PartitionIdleMin <= 0 || f.PartitionIdleMax < f.PartitionIdleMin {
		return errors.New("fetch partition idle bounds must satisfy 0 < min <= max")
	}
	if f.SyncInterval <= 0 {
		return errors.New("fetch.sync_interval must be positive")
	}
	if f.MediumActivityMeetings < 1 || f.HighActivityMeetings <= f.MediumActivityMeetings {
		return errors.New("fetch activity thresholds must satisfy 1 <= medium < high")
	}
	return nil
}

func validateProcess(p *ProcessConfig) error {
	if p == nil {
		return errors.New("process configuration is nil")
	}
	if p.ExtractConcurrency < 1 {
		return fmt.Errorf("process.extract_concurrency must be at least 1, got %d", p.ExtractConcurrency)
	}
	if p.ExtractTimeout <= 0 {
		return errors.New("process.extract_timeout must be positive")
	}
	return nil
}

func validateRetention(r *RetentionConfig) error {
	if r == nil {
		return errors.New("retention configuration is nil")
	}
	if r.JobRetention <= 0 {
		return errors.New("retention.job_retention must be positive")
	}
	if r.SyncRunRetention <= 0 {
		return errors.New("retention.sync_run_retention must be positive")
	}
	if r.CleanupInterval <= 0 {
		return errors.New("retention.cleanup_interval must be positive")
	}
	return nil
}

func validateLLM(l *LLMConfig) error {
	if l == nil {
		return errors.New("llm configuration is nil")
	}
	if l.Model == "" {
		return errors.New("llm.model must be set")
	}
	if l.MaxTokens < 1 {
		return fmt.Errorf("llm.max_tokens must be at least 1, got %d", l.MaxTokens)
	}
	if l.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must be non-negative, got %d", l.MaxRetries)
	}
	if l.ChunkSize < 1 {
		return fmt.Errorf("llm.chunk_size must be at least 1, got %d", l.ChunkSize)
	}
	return nil
}
