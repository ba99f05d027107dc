package job

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSubmission is wrapped by every *ValidationError.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrModelNotFound is wrapped by every *NotFoundError.
	ErrModelNotFound = errors.New("model not found")
	// ErrJobNotFound is returned for ids the store does not hold.
	ErrJobNotFound = errors.New("job not found")
)

// ValidationError rejects a malformed submission before anything is queued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidSubmission }

// NotFoundError names every requested model missing from the catalog.
type NotFoundError struct {
	Names []string
}

func (e *NotFoundError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("model not found: %s", e.Names[0])
	}
	return fmt.Sprintf("models not found: %s", strings.Join(e.Names, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrModelNotFound }
