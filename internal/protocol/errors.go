package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrNetwork         = errors.New("protocol: network failure")
	ErrPayload         = errors.New("protocol: malformed payload")
	ErrResponseTimeout = errors.New("protocol: response timeout")
	ErrRemoteStatus    = errors.New("protocol: remote status")
	ErrInternal        = errors.New("protocol: internal fault")
)

// StatusError carries a non-200 status received in a response or a REPORT.
type StatusError struct {
	Code   int
	Source string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("error %s %d", e.Source, e.Code)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRemoteStatus
}

// NetworkError wraps an I/O failure on the socket.
func NetworkError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrNetwork, op, err)
}

// PayloadError wraps a framing violation.
func PayloadError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPayload, fmt.Sprintf(format, args...))
}
