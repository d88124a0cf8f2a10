package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when the provider did not answer in time.
	ErrTimeout = errors.New("llm: request timed out")
	// ErrRateLimited is returned when the provider kept answering 429.
	ErrRateLimited = errors.New("llm: rate limited")
)

// ServiceError is the failure returned after retries are exhausted or on a
// non-retryable provider response.
type ServiceError struct {
	Model    string
	Status   int // HTTP status, 0 when no response was received
	Attempts int
	Err      error
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("llm %s failed after %d attempt(s) (status %d): %v", e.Model, e.Attempts, e.Status, e.Err)
	}
	return fmt.Sprintf("llm %s failed after %d attempt(s): %v", e.Model, e.Attempts, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// retryableError marks failures worth another attempt.
type retryableError struct {
	status int
	err    error
}

func (e *retryableError) Error() string { return e.err.Error() }

func (e *retryableError) Unwrap() error { return e.err }

func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
