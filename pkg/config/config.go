// Package config loads and validates pipeline configuration from the
// environment and an optional YAML file.
package config

// Config is the umbrella configuration object returned by Load() and passed
// into the conductor, fetcher, and processor.
type Config struct {
	Queue     *QueueConfig     `mapstructure:"queue"`
	Fetch     *FetchConfig     `mapstructure:"fetch"`
	Process   *ProcessConfig   `mapstructure:"process"`
	LLM       *LLMConfig       `mapstructure:"llm"`
	Logging   *LoggingConfig   `mapstructure:"logging"`
	Retention *RetentionConfig `mapstructure:"retention"`
}

// Default returns the built-in configuration with every section populated.
func Default() *Config {
	return &Config{
		Queue:     DefaultQueueConfig(),
		Fetch:     DefaultFetchConfig(),
		Process:   DefaultProcessConfig(),
		LLM:       DefaultLLMConfig(),
		Logging:   DefaultLoggingConfig(),
		Retention: DefaultRetentionConfig(),
	}
}
