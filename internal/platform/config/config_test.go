package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 4, cfg.Pipeline.TranscribeWorkers)
	assert.Equal(t, 3, cfg.Pipeline.RetryMaxAttempts)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.TranscribeTimeout)
	assert.Equal(t, "seriosity.notifications", cfg.Kafka.Topic)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, time.Hour, cfg.RateLimit.Window)
	assert.Equal(t, 120, cfg.RateLimit.Interview)
	assert.False(t, cfg.RateLimit.Disabled)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TRANSCRIBE_WORKERS", "8")
	t.Setenv("ANALYSIS_TIMEOUT", "2m")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 8, cfg.Pipeline.TranscribeWorkers)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.AnalysisTimeout)
}

func TestFromEnv_RejectsEmptyWorkerPool(t *testing.T) {
	t.Setenv("TRANSCRIBE_WORKERS", "0")

	_, err := FromEnv()
	require.Error(t, err)
}
