// Package policy centralises the tunable limits and safety checks applied by
// the execution engine: retry discipline, token and cost budgets, operation
// timeouts, and input sanitisation. Policies are plain records, immutable
// after construction and shared by reference.
package policy

import (
	"time"

	"github.com/fairyhunter13/swe-agent-orchestrator/internal/domain"
)

// RetryPolicy controls per-stage retry behavior.
type RetryPolicy struct {
	// MaxRetries caps worker retry attempts per stage invocation (0-based
	// attempt index; attempt >= MaxRetries is never retried).
	MaxRetries int
	// InitialDelay seeds the exponential backoff schedule.
	InitialDelay time.Duration
	// MaxDelay caps the backoff schedule.
	MaxDelay time.Duration
	// Multiplier is the exponential backoff base.
	Multiplier float64
	// RateLimitDelay is the base wait applied to rate-limited calls; the
	// effective delay grows linearly with the attempt index.
	RateLimitDelay time.Duration
	// MaxRework caps backward Review/Validate -> Generate transitions.
	MaxRework int
}

// DefaultRetryPolicy returns the documented defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialDelay:   5 * time.Second,
		MaxDelay:       120 * time.Second,
		Multiplier:     2.0,
		RateLimitDelay: 60 * time.Second,
		MaxRework:      3,
	}
}

// ShouldRetry decides whether the given 0-based attempt may be retried after
// err. Rate-limit signals always count as retryable below the attempt cap.
func (p RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if attempt >= p.MaxRetries {
		return false
	}
	return domain.IsRetryable(err)
}

// Delay returns the wait before the next attempt. Rate-limited calls wait
// RateLimitDelay*(attempt+1); everything else follows exponential backoff
// capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int, rateLimited bool) time.Duration {
	if rateLimited {
		return p.RateLimitDelay * time.Duration(attempt+1)
	}
	delay := time.Duration(float64(p.InitialDelay) * pow(p.Multiplier, attempt))
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// pow avoids importing math for small integer exponents.
func pow(base float64, exp int) float64 {
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}
