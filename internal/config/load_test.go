package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv supplies the secrets that have no defaults.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CERTSCAN_STORAGE_ENDPOINT", "localhost:9000")
	t.Setenv("CERTSCAN_STORAGE_ACCESS_KEY", "minio")
	t.Setenv("CERTSCAN_STORAGE_SECRET_KEY", "minio-secret")
	t.Setenv("CERTSCAN_STORAGE_BUCKET", "certificates")
	t.Setenv("CERTSCAN_LLM_GEMINI_API_KEY", "test-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.ModelName)
	assert.Equal(t, 50, cfg.LLM.CallsPerMinute)
	assert.Equal(t, 8, cfg.Pipeline.WorkerCount)
	assert.Equal(t, 1000, cfg.Pipeline.QueueCapacity)
	assert.Equal(t, 300, cfg.Pipeline.JobTimeoutSeconds)
	assert.Equal(t, 50, cfg.Pipeline.MaxFileSizeMB)
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CERTSCAN_SERVER_PORT", "9090")
	t.Setenv("CERTSCAN_PIPELINE_WORKER_COUNT", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Pipeline.WorkerCount)
}

func TestLoadRejectsMissingSecrets(t *testing.T) {
	// Deliberately no storage or LLM env.
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CERTSCAN_SERVER_LOG_LEVEL", "verbose")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestPipelineDurationHelpers(t *testing.T) {
	t.Parallel()

	p := PipelineConfig{
		JobTimeoutSeconds:        300,
		CacheTTLHours:            24,
		ClaimLeaseSeconds:        360,
		StatusTTLSeconds:         3600,
		TerminalRetentionSeconds: 900,
		ReconcileIntervalSeconds: 60,
		GraceMarginSeconds:       60,
		MaxFileSizeMB:            50,
	}

	assert.Equal(t, 5*time.Minute, p.JobTimeout())
	assert.Equal(t, 24*time.Hour, p.CacheTTL())
	assert.Equal(t, 6*time.Minute, p.ClaimLease())
	assert.Equal(t, time.Hour, p.StatusTTL())
	assert.Equal(t, 15*time.Minute, p.TerminalRetention())
	assert.Equal(t, time.Minute, p.ReconcileInterval())
	// Staleness threshold covers the full lease plus the grace margin.
	assert.Equal(t, 7*time.Minute, p.StaleAfter())
	assert.Equal(t, int64(50*1024*1024), p.MaxFileSizeBytes())
}
