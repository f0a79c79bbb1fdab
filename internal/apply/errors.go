package apply

import (
	"errors"
	"fmt"
)

// ErrEditsOverlap is returned when an EditSet contains overlapping edits.
var ErrEditsOverlap = errors.New("edits overlap")

// StaleContentError reports that a document's text changed between the
// format request and the arrival of its result. The result is discarded;
// stale output is never merged.
type StaleContentError struct {
	DocumentID string
}

// Error implements the error interface.
func (e *StaleContentError) Error() string {
	return fmt.Sprintf("document %s changed during formatting, result discarded", e.DocumentID)
}

// ApplyFailedError reports that the host buffer rejected an edit.
type ApplyFailedError struct {
	Err error
}

// Error implements the error interface.
func (e *ApplyFailedError) Error() string {
	return fmt.Sprintf("applying edits: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ApplyFailedError) Unwrap() error {
	return e.Err
}
