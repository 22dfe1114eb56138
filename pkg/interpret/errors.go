package interpret

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when Interpret is called with blank text.
var ErrEmptyInput = errors.New("interpret: empty input")

// ErrMalformedResponse is returned when the backend answers with neither a
// prompt nor an error.
var ErrMalformedResponse = errors.New("interpret: malformed response")

// TransportError covers network failures, timeouts and non-2xx statuses.
type TransportError struct {
	StatusCode int
	Err        error
}

var _ error = &TransportError{}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("interpretation backend returned HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("interpretation backend unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RPCError is a JSON-RPC level error returned by the backend.
type RPCError struct {
	Code    int
	Message string
}

var _ error = &RPCError{}

func (e *RPCError) Error() string {
	return fmt.Sprintf("interpretation backend error %d: %s", e.Code, e.Message)
}
