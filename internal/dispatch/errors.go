package dispatch

import (
	"fmt"
	"time"
)

// NoProviderError reports that no registered provider matches a document's
// content type for the requested operation.
type NoProviderError struct {
	ContentType string
}

// Error implements the error interface.
func (e *NoProviderError) Error() string {
	return fmt.Sprintf("no formatting provider for %q", e.ContentType)
}

// ProviderInvocationError reports that a formatting backend failed.
type ProviderInvocationError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderInvocationError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderInvocationError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that save-path formatting exceeded its time budget.
type TimeoutError struct {
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("formatting timed out after %s", e.Timeout)
}
