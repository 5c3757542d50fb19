package workerapi

import (
	"errors"
	"fmt"
)

// Domain errors returned by the workers themselves, as opposed to transport
// failures while talking to them. The gateway passes these through to the
// caller untouched.
var (
	ErrStreamNotFound       = errors.New("stream not found")
	ErrSnapshotNotFound     = errors.New("snapshot not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// WrongVersionError is the optimistic-concurrency conflict returned when an
// append carries an expected version that does not match the stream.
type WrongVersionError struct {
	Expected int64
	Actual   int64
}

func (e *WrongVersionError) Error() string {
	return fmt.Sprintf("wrong expected version: expected %d, actual %d", e.Expected, e.Actual)
}

// WorkerError is a pass-through domain error the gateway does not interpret.
// It preserves whatever error kind the worker reported.
type WorkerError struct {
	Kind    string
	Message string
}

func (e *WorkerError) Error() string {
	if e.Message == "" {
		return e.Kind
	}

	return e.Kind + ": " + e.Message
}

// IsDomainError reports whether the error originates from the worker's own
// store logic rather than from the transport.
func IsDomainError(err error) bool {
	var (
		wrongVersion *WrongVersionError
		workerErr    *WorkerError
	)

	switch {
	case errors.As(err, &wrongVersion), errors.As(err, &workerErr):
		return true
	case errors.Is(err, ErrStreamNotFound),
		errors.Is(err, ErrSnapshotNotFound),
		errors.Is(err, ErrSubscriptionNotFound):
		return true
	default:
		return false
	}
}
