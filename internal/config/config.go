// Package config provides the configuration structure for the
// chatterbox-service.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Defaults applied to fields left at their zero value.
const (
	DefaultHost                  = "0.0.0.0"
	DefaultPort                  = 8080
	DefaultRequestTimeoutSeconds = 300
	DefaultBatchTimeoutSeconds   = 600
	DefaultMaxTextLength         = 10000
	DefaultMaxBatchSize          = 10
	DefaultEngineTimeoutSeconds  = 300
	DefaultComfortableDuration   = 25.0
	DefaultHardLimit             = 40.0
	DefaultCharsPerSecond        = 12.0
)

// ServerConfig holds the HTTP façade settings.
type ServerConfig struct {
	Host                  string `toml:"host"`
	Port                  int    `toml:"port"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	BatchTimeoutSeconds   int    `toml:"batch_timeout_seconds"`
	MaxTextLength         int    `toml:"max_text_length"`
	MaxBatchSize          int    `toml:"max_batch_size"`

	// MaxQueueSize bounds pending jobs when positive. Zero keeps the queue
	// unbounded, accepting memory growth instead of rejecting work.
	MaxQueueSize int `toml:"max_queue_size"`
}

// EngineConfig holds the synthesis backend settings.
type EngineConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ChunkingConfig holds the duration budgets for text chunking.
type ChunkingConfig struct {
	ComfortableDurationSeconds float64 `toml:"comfortable_duration_seconds"`
	HardLimitSeconds           float64 `toml:"hard_limit_seconds"`
	CharsPerSecond             float64 `toml:"chars_per_second"`
}

// NATSConfig holds the optional audio archive settings. An empty URL
// disables the archive and the /audio endpoint.
type NATSConfig struct {
	URL                    string `toml:"url"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
}

// PathsConfig holds the file system locations the service writes to.
type PathsConfig struct {
	BaseLogsDir       string `toml:"base_logs_dir"`
	ReferenceAudioDir string `toml:"reference_audio_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Engine   EngineConfig   `toml:"engine"`
	Chunking ChunkingConfig `toml:"chunking"`
	NATS     NATSConfig     `toml:"nats"`
	Paths    PathsConfig    `toml:"paths"`
}

// Load loads the configuration through the central configurator and fills in
// defaults for omitted values.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults replaces zero values with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}

	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}

	if c.Server.RequestTimeoutSeconds == 0 {
		c.Server.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}

	if c.Server.BatchTimeoutSeconds == 0 {
		c.Server.BatchTimeoutSeconds = DefaultBatchTimeoutSeconds
	}

	if c.Server.MaxTextLength == 0 {
		c.Server.MaxTextLength = DefaultMaxTextLength
	}

	if c.Server.MaxBatchSize == 0 {
		c.Server.MaxBatchSize = DefaultMaxBatchSize
	}

	if c.Engine.TimeoutSeconds == 0 {
		c.Engine.TimeoutSeconds = DefaultEngineTimeoutSeconds
	}

	if c.Chunking.ComfortableDurationSeconds == 0 {
		c.Chunking.ComfortableDurationSeconds = DefaultComfortableDuration
	}

	if c.Chunking.HardLimitSeconds == 0 {
		c.Chunking.HardLimitSeconds = DefaultHardLimit
	}

	if c.Chunking.CharsPerSecond == 0 {
		c.Chunking.CharsPerSecond = DefaultCharsPerSecond
	}
}
