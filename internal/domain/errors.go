package domain

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors forming the core error taxonomy. Callers classify with
// errors.Is against these kinds first; substring matching on the message is
// the compatibility fallback for errors coming from remote SDKs that only
// surface text.
var (
	// ErrInvalidArgument marks malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound marks a missing run, file, or remote resource.
	ErrNotFound = errors.New("not found")
	// ErrAuthentication marks missing or rejected credentials. Non-retryable.
	ErrAuthentication = errors.New("authentication failed")
	// ErrContentFiltered marks a provider-side content filter rejection. Non-retryable.
	ErrContentFiltered = errors.New("content filtered")
	// ErrRateLimited marks an explicit rate-limit signal (429 or equivalent).
	ErrRateLimited = errors.New("rate limited")
	// ErrUpstreamTimeout marks a transient remote timeout. Retryable.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrConnection marks a transient connection failure or 5xx. Retryable.
	ErrConnection = errors.New("connection failed")
	// ErrStageRetryable marks a structured worker failure with retryable=true.
	ErrStageRetryable = errors.New("retryable stage failure")
	// ErrParsing marks a stage-output parse failure. Terminal for the engine;
	// stages may retry it once internally at their own discretion.
	ErrParsing = errors.New("response parsing failed")
	// ErrBudgetExceeded marks a token or cost budget violation. Never retried.
	ErrBudgetExceeded = errors.New("budget exceeded")
	// ErrInvalidTransition marks an edge that does not exist in the state
	// machine. Programmer error.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrGuardDenied marks an existing edge whose guard rejected the context.
	ErrGuardDenied = errors.New("transition guard denied")
	// ErrDeadlineExceeded marks the whole-task deadline expiring. Non-retryable.
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)

// rateLimitMarkers are matched case-insensitively against error text as the
// fallback classification path.
var rateLimitMarkers = []string{"429", "rate limit", "resource_exhausted"}

// IsRateLimit reports whether err carries a rate-limit signal, checking the
// structured kind before falling back to message markers.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsTransient reports whether err is a transient remote failure eligible for
// exponential backoff.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrUpstreamTimeout) ||
		errors.Is(err, ErrConnection) ||
		errors.Is(err, ErrStageRetryable)
}

// IsRetryable reports whether the retry policy may retry err at all. Budget,
// authentication, content-filter, and deadline errors are always final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBudgetExceeded) ||
		errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrContentFiltered) ||
		errors.Is(err, ErrDeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return false
	}
	return IsRateLimit(err) || IsTransient(err)
}
