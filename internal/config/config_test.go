package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, "swe-agent-orchestrator", cfg.OTELServiceName)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.Equal(t, "traces", cfg.TraceDir)
	assert.Equal(t, "experiments", cfg.ExperimentsDir)

	assert.Equal(t, 3, cfg.RetryMaxRetries)
	assert.Equal(t, 5*time.Second, cfg.RetryInitialDelay)
	assert.Equal(t, 120*time.Second, cfg.RetryMaxDelay)
	assert.Equal(t, 60*time.Second, cfg.RateLimitDelay)
	assert.Equal(t, 3, cfg.MaxRework)

	assert.Equal(t, 100000, cfg.MaxTokensPerTask)
	assert.Equal(t, 25000, cfg.MaxTokensPerStage)
	assert.InDelta(t, 5.0, cfg.MaxCostPerTaskUSD, 1e-9)

	assert.Equal(t, 300*time.Second, cfg.StageWorkerTimeout)
	assert.Equal(t, 3600*time.Second, cfg.WholeTaskTimeout)

	assert.True(t, cfg.SanitizePrompts)
	assert.Contains(t, cfg.AllowedFileExtensions, ".go")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("MAX_TOKENS_PER_TASK", "5000")
	t.Setenv("RETRY_INITIAL_DELAY", "250ms")
	t.Setenv("ALLOWED_FILE_EXTENSIONS", ".go,.rs")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProd())
	assert.Equal(t, 5000, cfg.MaxTokensPerTask)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryInitialDelay)
	assert.Equal(t, []string{".go", ".rs"}, cfg.AllowedFileExtensions)
}
