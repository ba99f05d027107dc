package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// TransientError marks a failure worth retrying: rate limits, upstream 5xx
// and broken connections.
type TransientError struct {
	Provider   string
	StatusCode int // 0 for transport failures
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transient status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transient: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// StatusError is a non-retryable HTTP rejection (bad request, auth, unknown model).
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsTransient reports whether err, or anything it wraps, is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// statusError classifies a non-2xx reply.
func statusError(provider string, code int, message string) error {
	message = strings.TrimSpace(message)
	if code == http.StatusTooManyRequests || code >= 500 {
		return &TransientError{Provider: provider, StatusCode: code, Err: errors.New(orStatusText(message, code))}
	}
	return &StatusError{Provider: provider, StatusCode: code, Message: message}
}

// transportError wraps a failed round trip. Caller cancellation stays permanent.
func transportError(ctx context.Context, provider string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", provider, err)
	}
	return &TransientError{Provider: provider, Err: err}
}

func orStatusText(message string, code int) string {
	if message != "" {
		return message
	}
	return http.StatusText(code)
}
