package sandbox

import "errors"

// ErrExecutionFailed matches every *ExecutionError with errors.Is.
var ErrExecutionFailed = errors.New("execution failed")

// ExecutionError is returned when action code is rejected or raises while
// running. It is always recoverable.
type ExecutionError struct {
	Reason string
	Err    error
}

var _ error = &ExecutionError{}

func (e *ExecutionError) Error() string {
	msg := "execution failed: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Is(target error) bool { return target == ErrExecutionFailed }

func rejected(reason string) error {
	return &ExecutionError{Reason: reason}
}
