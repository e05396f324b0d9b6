// Package github provides the rate-limited code-hosting client. Every
// outbound call passes through the Limiter, which stalls proactively before
// quota exhaustion instead of reacting to 403/429 responses.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fairyhunter13/swe-agent-orchestrator/internal/adapter/observability"
	"github.com/fairyhunter13/swe-agent-orchestrator/internal/domain"
)

// Quota is the limiter's view of the remote request window.
type Quota struct {
	Remaining int           `json:"remaining"`
	Limit     int           `json:"limit"`
	ResetAt   time.Time     `json:"reset_at"`
	ResetIn   time.Duration `json:"reset_in"`
}

// QuotaProbe fetches the current quota from the remote endpoint.
type QuotaProbe interface {
	Probe(ctx context.Context) (Quota, error)
}

// Conservative fallback when the probe itself fails: assume a healthy-ish
// remainder and an hourly window, so a persistently failing probe degrades
// to an hourly pulse rather than unlimited issue.
const (
	fallbackRemaining = 1000
	fallbackResetIn   = time.Hour
)

// Limiter caches the remote quota and blocks callers that would cross the
// safety margin. A single mutex serialises check, wait, and refresh, so the
// refresh performed after a wait is observed by every subsequent caller and
// per-call ordering is FIFO.
type Limiter struct {
	mu            sync.Mutex
	probe         QuotaProbe
	cached        Quota
	checkedAt     time.Time
	checkInterval time.Duration
	safetyMargin  int
	logger        *slog.Logger
	clock         func() time.Time
	sleep         func(ctx context.Context, d time.Duration) error
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithCheckInterval sets the cache lifetime for quota checks.
func WithCheckInterval(d time.Duration) LimiterOption {
	return func(l *Limiter) { l.checkInterval = d }
}

// WithSafetyMargin sets how many requests are kept in reserve.
func WithSafetyMargin(n int) LimiterOption {
	return func(l *Limiter) { l.safetyMargin = n }
}

// NewLimiter creates a limiter over the given probe with the documented
// defaults (60s check interval, margin of 100).
func NewLimiter(probe QuotaProbe, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		probe:         probe,
		checkInterval: 60 * time.Second,
		safetyMargin:  100,
		logger:        slog.Default(),
		clock:         time.Now,
		sleep:         sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check returns the quota view, refreshing it when the cache is older than
// the check interval. A probe failure substitutes conservative defaults and
// is never surfaced to the caller.
func (l *Limiter) Check(ctx context.Context) Quota {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkLocked(ctx)
}

// WaitIfNeeded blocks until issuing estimatedCost requests would leave the
// safety margin intact. When the window is too tight it sleeps until one
// second past the reset time, refreshes, and returns. The only error is a
// cancelled or expired ctx.
func (l *Limiter) WaitIfNeeded(ctx context.Context, estimatedCost int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	q := l.checkLocked(ctx)
	if q.Remaining > estimatedCost+l.safetyMargin {
		return nil
	}

	wait := q.ResetAt.Sub(l.clock()) + time.Second
	if wait < 0 {
		wait = time.Second
	}
	l.logger.Warn("rate limit window tight; waiting for reset",
		slog.Int("remaining", q.Remaining),
		slog.Int("estimated_cost", estimatedCost),
		slog.Duration("wait", wait))
	observability.RateLimitWaits.Inc()

	if err := l.sleep(ctx, wait); err != nil {
		return fmt.Errorf("op=github.WaitIfNeeded: %w: %w", domain.ErrDeadlineExceeded, err)
	}
	// Force a refresh so the post-reset window is visible to the next caller.
	l.checkedAt = time.Time{}
	l.checkLocked(ctx)
	return nil
}

func (l *Limiter) checkLocked(ctx context.Context) Quota {
	now := l.clock()
	if !l.checkedAt.IsZero() && now.Sub(l.checkedAt) < l.checkInterval {
		return l.cached
	}
	q, err := l.probe.Probe(ctx)
	if err != nil {
		l.logger.Warn("quota probe failed; using conservative defaults",
			slog.Any("error", err))
		q = Quota{
			Remaining: fallbackRemaining,
			Limit:     fallbackRemaining,
			ResetAt:   now.Add(fallbackResetIn),
			ResetIn:   fallbackResetIn,
		}
	} else {
		q.ResetIn = q.ResetAt.Sub(now)
	}
	l.cached = q
	l.checkedAt = now
	return q
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
