package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load builds the configuration: built-in defaults, then an optional YAML
// file (gavel.yaml in configDir), then environment variables. Env wins.
//
// Environment names follow the section structure with GAVEL_ prefix
// (GAVEL_QUEUE_MAX_RETRIES, GAVEL_FETCH_SYNC_INTERVAL, ...). A handful of
// well-known unprefixed variables are honored too: ANTHROPIC_API_KEY,
// LOG_LEVEL, EXTRACTOR_URL.
func Load(configDir string) (*Config, error) {
	if configDir != "" {
		envPath := configDir + "/.env"
		if err := godotenv.Load(envPath); err != nil {
			slog.Debug("No .env file loaded", "path", envPath, "error", err)
		}
	}

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("GAVEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configDir != "" {
		v.SetConfigName("gavel")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else {
			slog.Info("Loaded config file", "path", v.ConfigFileUsed())
		}
	}

	// Unprefixed aliases take precedence over file values but lose to the
	// GAVEL_-prefixed forms bound above.
	bindAliases(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every field of the default config with viper so
// AutomaticEnv lookups have keys to bind to.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("queue.max_retries", d.Queue.MaxRetries)
	v.SetDefault("queue.retry_penalty", d.Queue.RetryPenalty)
	v.SetDefault("queue.poll_interval", d.Queue.PollInterval)
	v.SetDefault("queue.poll_backoff", d.Queue.PollBackoff)
	v.SetDefault("queue.error_backoff", d.Queue.ErrorBackoff)
	v.SetDefault("queue.stale_lease_threshold", d.Queue.StaleLeaseThreshold)

	v.SetDefault("fetch.city_sync_concurrency", d.Fetch.CitySyncConcurrency)
	v.SetDefault("fetch.vendor_min_delay", d.Fetch.VendorMinDelay)
	v.SetDefault("fetch.vendor_burst", d.Fetch.VendorBurst)
	v.SetDefault("fetch.partition_idle_min", d.Fetch.PartitionIdleMin)
	v.SetDefault("fetch.partition_idle_max", d.Fetch.PartitionIdleMax)
	v.SetDefault("fetch.sync_interval", d.Fetch.SyncInterval)
	v.SetDefault("fetch.high_activity_meetings", d.Fetch.HighActivityMeetings)
	v.SetDefault("fetch.medium_activity_meetings", d.Fetch.MediumActivityMeetings)
	v.SetDefault("fetch.high_activity_interval", d.Fetch.HighActivityInterval)
	v.SetDefault("fetch.medium_activity_interval", d.Fetch.MediumActivityInterval)
	v.SetDefault("fetch.low_activity_interval", d.Fetch.LowActivityInterval)

	v.SetDefault("process.extractor_url", d.Process.ExtractorURL)
	v.SetDefault("process.extract_concurrency", d.Process.ExtractConcurrency)
	v.SetDefault("process.extract_timeout", d.Process.ExtractTimeout)

	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.max_retries", d.LLM.MaxRetries)
	v.SetDefault("llm.initial_backoff", d.LLM.InitialBackoff)
	v.SetDefault("llm.chunk_size", d.LLM.ChunkSize)

	v.SetDefault("retention.job_retention", d.Retention.JobRetention)
	v.SetDefault("retention.sync_run_retention", d.Retention.SyncRunRetention)
	v.SetDefault("retention.cleanup_interval", d.Retention.CleanupInterval)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
}

// bindAliases maps conventional unprefixed env vars onto config keys.
func bindAliases(v *viper.Viper) {
	_ = v.BindEnv("llm.api_key", "GAVEL_LLM_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("logging.level", "GAVEL_LOGGING_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("process.extractor_url", "GAVEL_PROCESS_EXTRACTOR_URL", "EXTRACTOR_URL")
}
