package luafmt

import (
	"errors"
	"fmt"
)

// ErrExecutorClosed is returned when a call is submitted to a closed
// executor.
var ErrExecutorClosed = errors.New("lua executor is closed")

// ScriptError reports a problem in a provider script: a load failure, a
// malformed provider table, or a bad return value from a format function.
type ScriptError struct {
	Path string
	Err  error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("lua script %s: %v", e.Path, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }
