package policy

import (
	"github.com/fairyhunter13/swe-agent-orchestrator/internal/config"
)

// Manager bundles the four policies the engine consults. Construct once per
// process; read-only afterwards.
type Manager struct {
	Retry    RetryPolicy
	Budget   BudgetPolicy
	Timeout  TimeoutPolicy
	Security SecurityPolicy
}

// NewManager returns a Manager with all defaults.
func NewManager() *Manager {
	return &Manager{
		Retry:    DefaultRetryPolicy(),
		Budget:   DefaultBudgetPolicy(),
		Timeout:  DefaultTimeoutPolicy(),
		Security: DefaultSecurityPolicy(),
	}
}

// FromConfig builds a Manager from the host configuration record.
func FromConfig(cfg config.Config) *Manager {
	return &Manager{
		Retry: RetryPolicy{
			MaxRetries:     cfg.RetryMaxRetries,
			InitialDelay:   cfg.RetryInitialDelay,
			MaxDelay:       cfg.RetryMaxDelay,
			Multiplier:     cfg.RetryMultiplier,
			RateLimitDelay: cfg.RateLimitDelay,
			MaxRework:      cfg.MaxRework,
		},
		Budget: BudgetPolicy{
			MaxTokensPerTask:  cfg.MaxTokensPerTask,
			MaxTokensPerStage: cfg.MaxTokensPerStage,
			MaxCostPerTaskUSD: cfg.MaxCostPerTaskUSD,
			InputCostPer1K:    cfg.InputCostPer1K,
			OutputCostPer1K:   cfg.OutputCostPer1K,
		},
		Timeout: TimeoutPolicy{
			StageWorker: cfg.StageWorkerTimeout,
			RemoteAPI:   cfg.RemoteAPITimeout,
			TestRunner:  cfg.TestRunnerTimeout,
			WholeTask:   cfg.WholeTaskTimeout,
		},
		Security: SecurityPolicy{
			SanitizePrompts:       cfg.SanitizePrompts,
			AllowedFileExtensions: cfg.AllowedFileExtensions,
		},
	}
}
