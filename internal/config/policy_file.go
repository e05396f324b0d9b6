package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration parses YAML values in time.ParseDuration form ("30s", "2m").
// Plain integers are taken as nanoseconds for compatibility.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// PolicyFile is the optional YAML overlay for policy tuning. Sections left
// empty keep the environment-derived values; zero fields inside a present
// section keep the defaults too, so a file may override a single knob.
type PolicyFile struct {
	Retry struct {
		MaxRetries     int      `yaml:"max_retries" validate:"gte=0"`
		InitialDelay   Duration `yaml:"initial_delay" validate:"gte=0"`
		MaxDelay       Duration `yaml:"max_delay" validate:"gte=0"`
		Multiplier     float64  `yaml:"multiplier" validate:"gte=0"`
		RateLimitDelay Duration `yaml:"rate_limit_delay" validate:"gte=0"`
		MaxRework      int      `yaml:"max_rework" validate:"gte=0"`
	} `yaml:"retry"`
	Budgets struct {
		MaxTokensPerTask  int     `yaml:"max_tokens_per_task" validate:"gte=0"`
		MaxTokensPerStage int     `yaml:"max_tokens_per_stage" validate:"gte=0"`
		MaxCostPerTaskUSD float64 `yaml:"max_cost_per_task_usd" validate:"gte=0"`
		InputCostPer1K    float64 `yaml:"input_cost_per_1k" validate:"gte=0"`
		OutputCostPer1K   float64 `yaml:"output_cost_per_1k" validate:"gte=0"`
	} `yaml:"budgets"`
	Timeouts struct {
		StageWorker Duration `yaml:"stage_worker" validate:"gte=0"`
		RemoteAPI   Duration `yaml:"remote_api" validate:"gte=0"`
		TestRunner  Duration `yaml:"test_runner" validate:"gte=0"`
		WholeTask   Duration `yaml:"whole_task" validate:"gte=0"`
	} `yaml:"timeouts"`
	Security struct {
		SanitizePrompts   *bool    `yaml:"sanitize_prompts"`
		AllowedExtensions []string `yaml:"allowed_extensions"`
	} `yaml:"security"`
}

// LoadPolicyFile reads and validates a YAML policy overlay.
func LoadPolicyFile(path string) (PolicyFile, error) {
	var pf PolicyFile
	data, err := os.ReadFile(path)
	if err != nil {
		return PolicyFile{}, fmt.Errorf("op=config.LoadPolicyFile: %w", err)
	}
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return PolicyFile{}, fmt.Errorf("op=config.LoadPolicyFile: %w", err)
	}
	if err := validator.New().Struct(pf); err != nil {
		return PolicyFile{}, fmt.Errorf("op=config.LoadPolicyFile: validate: %w", err)
	}
	return pf, nil
}

// Apply overlays the non-zero policy file values onto cfg.
func (pf PolicyFile) Apply(cfg *Config) {
	if pf.Retry.MaxRetries > 0 {
		cfg.RetryMaxRetries = pf.Retry.MaxRetries
	}
	if pf.Retry.InitialDelay > 0 {
		cfg.RetryInitialDelay = time.Duration(pf.Retry.InitialDelay)
	}
	if pf.Retry.MaxDelay > 0 {
		cfg.RetryMaxDelay = time.Duration(pf.Retry.MaxDelay)
	}
	if pf.Retry.Multiplier > 0 {
		cfg.RetryMultiplier = pf.Retry.Multiplier
	}
	if pf.Retry.RateLimitDelay > 0 {
		cfg.RateLimitDelay = time.Duration(pf.Retry.RateLimitDelay)
	}
	if pf.Retry.MaxRework > 0 {
		cfg.MaxRework = pf.Retry.MaxRework
	}
	if pf.Budgets.MaxTokensPerTask > 0 {
		cfg.MaxTokensPerTask = pf.Budgets.MaxTokensPerTask
	}
	if pf.Budgets.MaxTokensPerStage > 0 {
		cfg.MaxTokensPerStage = pf.Budgets.MaxTokensPerStage
	}
	if pf.Budgets.MaxCostPerTaskUSD > 0 {
		cfg.MaxCostPerTaskUSD = pf.Budgets.MaxCostPerTaskUSD
	}
	if pf.Budgets.InputCostPer1K > 0 {
		cfg.InputCostPer1K = pf.Budgets.InputCostPer1K
	}
	if pf.Budgets.OutputCostPer1K > 0 {
		cfg.OutputCostPer1K = pf.Budgets.OutputCostPer1K
	}
	if pf.Timeouts.StageWorker > 0 {
		cfg.StageWorkerTimeout = time.Duration(pf.Timeouts.StageWorker)
	}
	if pf.Timeouts.RemoteAPI > 0 {
		cfg.RemoteAPITimeout = time.Duration(pf.Timeouts.RemoteAPI)
	}
	if pf.Timeouts.TestRunner > 0 {
		cfg.TestRunnerTimeout = time.Duration(pf.Timeouts.TestRunner)
	}
	if pf.Timeouts.WholeTask > 0 {
		cfg.WholeTaskTimeout = time.Duration(pf.Timeouts.WholeTask)
	}
	if pf.Security.SanitizePrompts != nil {
		cfg.SanitizePrompts = *pf.Security.SanitizePrompts
	}
	if len(pf.Security.AllowedExtensions) > 0 {
		cfg.AllowedFileExtensions = pf.Security.AllowedExtensions
	}
}
