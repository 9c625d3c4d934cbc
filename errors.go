package cloudstate

import (
	"errors"
	"fmt"

	"github.com/justloop/cloudstate/coord"
)

var (
	// ErrNotReady indicates the reader has not been bootstrapped yet
	ErrNotReady = errors.New("cluster state reader is not ready yet")

	// ErrClosed indicates the reader has been closed
	ErrClosed = errors.New("cluster state reader is closed")

	// ErrNoLeader indicates no leader was registered for a shard within the poll budget
	ErrNoLeader = errors.New("no registered leader was found")

	// ErrInterrupted indicates a blocking wait was cancelled through its context
	ErrInterrupted = coord.ErrInterrupted
)

// ErrorCode classifies a StateError
type ErrorCode int

// Error codes, numbered like the matching HTTP status
const (
	CodeBadRequest         ErrorCode = 400
	CodeServerError        ErrorCode = 500
	CodeServiceUnavailable ErrorCode = 503
)

func (c ErrorCode) String() string {
	switch c {
	case CodeBadRequest:
		return "bad request"
	case CodeServerError:
		return "server error"
	case CodeServiceUnavailable:
		return "service unavailable"
	default:
		return fmt.Sprintf("code %d", int(c))
	}
}

// StateError is the error of a failed cluster state operation
type StateError struct {
	Code ErrorCode
	// Op is the operation that failed, e.g. "bootstrap" or "refresh"
	Op  string
	Err error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cluster state %s (%s): %s", e.Op, e.Code, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// newStateError wraps err, transient coordination failures get CodeServiceUnavailable
func newStateError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StateError
	if errors.As(err, &se) {
		return err
	}
	code := CodeServerError
	if coord.IsTransient(err) {
		code = CodeServiceUnavailable
	}
	return &StateError{Code: code, Op: op, Err: err}
}

// NoLeaderError is returned when no leader showed up for a shard within the poll budget
type NoLeaderError struct {
	Collection string
	Shard      string
}

func (e *NoLeaderError) Error() string {
	return fmt.Sprintf("%s, collection: %s slice: %s", ErrNoLeader, e.Collection, e.Shard)
}

// Is makes errors.Is(err, ErrNoLeader) match
func (e *NoLeaderError) Is(target error) bool {
	return target == ErrNoLeader
}
