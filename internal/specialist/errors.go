package specialist

import (
	"errors"
	"fmt"
	"time"
)

// ErrFailed matches every specialist failure with errors.Is.
var ErrFailed = errors.New("specialist failed")

// TimeoutError means the specialist did not finish within its timeout.
type TimeoutError struct {
	Agent   Kind
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("specialist %s timed out after %s", e.Agent, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrFailed }

// ExecutionError wraps a failure while building the prompt or calling
// the model.
type ExecutionError struct {
	Agent Kind
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("specialist %s failed: %v", e.Agent, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Is(target error) bool { return target == ErrFailed }

// OutputError means the model answered but the answer did not match the
// specialist's schema.
type OutputError struct {
	Agent Kind
	Err   error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("specialist %s returned invalid output: %v", e.Agent, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }

func (e *OutputError) Is(target error) bool { return target == ErrFailed }
