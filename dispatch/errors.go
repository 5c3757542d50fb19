package dispatch

import (
	"context"
	"errors"
	"fmt"

	"eventgate/internal/grpcutil"
	"eventgate/workerapi"
)

var (
	// ErrDispatchFailed covers transport-level failures while forwarding a
	// call: the worker crashed, the connection broke, the dial failed. It
	// is distinct from any domain error the worker itself returns.
	ErrDispatchFailed = errors.New("dispatch failed")

	// ErrTimeout is a dispatch failure caused by the call exceeding its
	// deadline. The remote operation may still complete; its result is
	// discarded.
	ErrTimeout = fmt.Errorf("%w: timeout", ErrDispatchFailed)
)

// translateErr maps a worker-call error into the dispatch taxonomy. Domain
// errors pass through verbatim: the gateway does not interpret or retry
// store-layer business errors.
func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case workerapi.IsDomainError(err):
		return err
	case errors.Is(err, context.DeadlineExceeded), grpcutil.IsTimeout(err):
		return fmt.Errorf("%w: %s", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %s", ErrDispatchFailed, err)
	}
}
