// Package config_test tests the configuration structure for the
// chatterbox-service.
package config_test

import (
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/chatterbox-service/internal/config"
)

func TestUnmarshalConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[server]
host = "127.0.0.1"
port = 9090
request_timeout_seconds = 120
batch_timeout_seconds = 240
max_text_length = 5000
max_batch_size = 5
max_queue_size = 64

[engine]
base_url = "http://localhost:8000"
timeout_seconds = 180

[chunking]
comfortable_duration_seconds = 20.0
hard_limit_seconds = 35.0
chars_per_second = 14.0

[nats]
url = "nats://127.0.0.1:4222"
audio_object_store_bucket = "CHATTERBOX_AUDIO"

[paths]
base_logs_dir = "/var/log/chatterbox"
reference_audio_dir = "/var/lib/chatterbox/refs"
`

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 120, cfg.Server.RequestTimeoutSeconds)
	assert.Equal(t, 240, cfg.Server.BatchTimeoutSeconds)
	assert.Equal(t, 5000, cfg.Server.MaxTextLength)
	assert.Equal(t, 5, cfg.Server.MaxBatchSize)
	assert.Equal(t, 64, cfg.Server.MaxQueueSize)
	assert.Equal(t, "http://localhost:8000", cfg.Engine.BaseURL)
	assert.Equal(t, 180, cfg.Engine.TimeoutSeconds)
	assert.InEpsilon(t, 20.0, cfg.Chunking.ComfortableDurationSeconds, 0.001)
	assert.InEpsilon(t, 35.0, cfg.Chunking.HardLimitSeconds, 0.001)
	assert.InEpsilon(t, 14.0, cfg.Chunking.CharsPerSecond, 0.001)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "CHATTERBOX_AUDIO", cfg.NATS.AudioObjectStoreBucket)
	assert.Equal(t, "/var/log/chatterbox", cfg.Paths.BaseLogsDir)
	assert.Equal(t, "/var/lib/chatterbox/refs", cfg.Paths.ReferenceAudioDir)
}

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	cfg.ApplyDefaults()

	assert.Equal(t, config.DefaultHost, cfg.Server.Host)
	assert.Equal(t, config.DefaultPort, cfg.Server.Port)
	assert.Equal(t, config.DefaultRequestTimeoutSeconds, cfg.Server.RequestTimeoutSeconds)
	assert.Equal(t, config.DefaultBatchTimeoutSeconds, cfg.Server.BatchTimeoutSeconds)
	assert.Equal(t, config.DefaultMaxTextLength, cfg.Server.MaxTextLength)
	assert.Equal(t, config.DefaultMaxBatchSize, cfg.Server.MaxBatchSize)
	assert.Zero(t, cfg.Server.MaxQueueSize)
	assert.Equal(t, config.DefaultEngineTimeoutSeconds, cfg.Engine.TimeoutSeconds)
	assert.InEpsilon(t, config.DefaultComfortableDuration,
		cfg.Chunking.ComfortableDurationSeconds, 0.001)
	assert.InEpsilon(t, config.DefaultHardLimit, cfg.Chunking.HardLimitSeconds, 0.001)
	assert.InEpsilon(t, config.DefaultCharsPerSecond, cfg.Chunking.CharsPerSecond, 0.001)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.Server.Port = 9999
	cfg.Chunking.HardLimitSeconds = 55.0

	cfg.ApplyDefaults()

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.InEpsilon(t, 55.0, cfg.Chunking.HardLimitSeconds, 0.001)
}
