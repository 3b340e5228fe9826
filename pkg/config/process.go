package config

import "time"

// ProcessConfig controls document extraction within the processor.
type ProcessConfig struct {
	// ExtractorURL is the base URL of the PDF text-extraction service.
	ExtractorURL string `mapstructure:"extractor_url"`

	// ExtractConcurrency bounds concurrent PDF extractions per meeting.
	ExtractConcurrency int `mapstructure:"extract_concurrency"`

	// ExtractTimeout bounds a single document extraction.
	ExtractTimeout time.Duration `mapstructure:"extract_timeout"`
}

// DefaultProcessConfig returns the built-in processing defaults.
func DefaultProcessConfig() *ProcessConfig {
	return &ProcessConfig{
		ExtractorURL:       "http://localhost:8090",
		ExtractConcurrency: 6,
		ExtractTimeout:     2 * time.Minute,
	}
}
