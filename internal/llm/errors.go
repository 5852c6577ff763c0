package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrCircuitOpen is returned while a breaker rejects calls.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrRateLimited is returned when the local token bucket is empty and the caller gave up waiting.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// ProviderError carries the HTTP status of a failed remote call.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is transient: HTTP 429, any 5xx, or a
// network timeout. Cancellation by the caller is never retried.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var perr *ProviderError
	if errors.As(err, &perr) {
		if perr.StatusCode == http.StatusTooManyRequests || perr.StatusCode >= http.StatusInternalServerError {
			return true
		}
		if perr.StatusCode != 0 {
			return false
		}
	}

	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
