package session

import (
	"errors"
	"fmt"
)

var (
	// ErrCaptureUnavailable is returned by StartRecording when no speech
	// capture is configured or the configured one cannot run.
	ErrCaptureUnavailable = errors.New("speech capture unavailable")

	// ErrEmptyInput is returned by Submit for blank text. Nothing is
	// recorded in the log.
	ErrEmptyInput = errors.New("empty input")

	// ErrClosed is returned by every operation once Close has run.
	ErrClosed = errors.New("session closed")
)

// InterpretationError describes a request that produced no usable result,
// either because the transport failed or because the backend reported an
// error.
type InterpretationError struct {
	Reason string
	Err    error
}

func (e *InterpretationError) Error() string {
	if e.Err == nil {
		return "interpretation failed: " + e.Reason
	}
	return fmt.Sprintf("interpretation failed: %s: %v", e.Reason, e.Err)
}

func (e *InterpretationError) Unwrap() error { return e.Err }
