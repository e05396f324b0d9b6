// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all host configuration parsed from environment variables.
// The orchestrator core never reads the environment itself; the host parses
// this record once and injects the derived policies and credentials.
type Config struct {
	AppEnv          string `env:"APP_ENV" envDefault:"dev"`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"swe-agent-orchestrator"`
	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	MetricsPort     int    `env:"METRICS_PORT" envDefault:"9090"`

	// Code-hosting provider credentials and endpoint.
	GithubToken   string `env:"GITHUB_TOKEN"`
	GithubBaseURL string `env:"GITHUB_BASE_URL" envDefault:"https://api.github.com"`

	// Output directories for durable run artifacts.
	TraceDir       string `env:"TRACE_DIR" envDefault:"traces"`
	ExperimentsDir string `env:"EXPERIMENTS_DIR" envDefault:"experiments"`

	// Benchmark fan.
	BenchConcurrency int `env:"BENCH_CONCURRENCY" envDefault:"1"`

	// Retry policy.
	RetryMaxRetries   int           `env:"RETRY_MAX_RETRIES" envDefault:"3"`
	RetryInitialDelay time.Duration `env:"RETRY_INITIAL_DELAY" envDefault:"5s"`
	RetryMaxDelay     time.Duration `env:"RETRY_MAX_DELAY" envDefault:"120s"`
	RetryMultiplier   float64       `env:"RETRY_MULTIPLIER" envDefault:"2.0"`
	RateLimitDelay    time.Duration `env:"RATE_LIMIT_DELAY" envDefault:"60s"`
	MaxRework         int           `env:"MAX_REWORK" envDefault:"3"`

	// Budget policy.
	MaxTokensPerTask  int     `env:"MAX_TOKENS_PER_TASK" envDefault:"100000"`
	MaxTokensPerStage int     `env:"MAX_TOKENS_PER_STAGE" envDefault:"25000"`
	MaxCostPerTaskUSD float64 `env:"MAX_COST_PER_TASK_USD" envDefault:"5.0"`
	InputCostPer1K    float64 `env:"INPUT_COST_PER_1K" envDefault:"0.00015"`
	OutputCostPer1K   float64 `env:"OUTPUT_COST_PER_1K" envDefault:"0.0006"`

	// Timeout policy.
	StageWorkerTimeout time.Duration `env:"STAGE_WORKER_TIMEOUT" envDefault:"300s"`
	RemoteAPITimeout   time.Duration `env:"REMOTE_API_TIMEOUT" envDefault:"30s"`
	TestRunnerTimeout  time.Duration `env:"TEST_RUNNER_TIMEOUT" envDefault:"600s"`
	WholeTaskTimeout   time.Duration `env:"WHOLE_TASK_TIMEOUT" envDefault:"3600s"`

	// Security policy.
	SanitizePrompts       bool     `env:"SANITIZE_PROMPTS" envDefault:"true"`
	AllowedFileExtensions []string `env:"ALLOWED_FILE_EXTENSIONS" envSeparator:"," envDefault:".go,.py,.md,.txt,.yaml,.yml,.json"`

	// Rate limiter.
	RateLimitCheckInterval time.Duration `env:"RATE_LIMIT_CHECK_INTERVAL" envDefault:"60s"`
	RateLimitSafetyMargin  int           `env:"RATE_LIMIT_SAFETY_MARGIN" envDefault:"100"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }
