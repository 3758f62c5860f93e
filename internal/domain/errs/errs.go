// Package errs defines the error kinds shared across the signal pipeline.
// Callers wrap them with fmt.Errorf("...: %w", kind) and test with errors.Is.
package errs

import "errors"

var (
	// ErrValidation marks bad caller input (lookback range, symbol format).
	ErrValidation = errors.New("validation error")
	// ErrProviderUnavailable marks an unreachable or timed-out quote/news provider.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrNoSentimentAvailable is returned when no sentiment model produced a score.
	ErrNoSentimentAvailable = errors.New("no sentiment available")
	// ErrInsufficientHistory is returned when there are too few bars for indicators.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrCacheDegraded marks a response built from stale cached data.
	ErrCacheDegraded = errors.New("cache degraded")
	// ErrRateLimited marks an exhausted caller budget or a provider-side rate limit.
	ErrRateLimited = errors.New("rate limited")
)

// Kind returns the short name of the error kind carried by err, or "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, ErrNoSentimentAvailable):
		return "no_sentiment"
	case errors.Is(err, ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, ErrCacheDegraded):
		return "cache_degraded"
	default:
		return "internal"
	}
}
