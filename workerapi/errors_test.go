package workerapi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsDomainError(t *testing.T) {
	require.True(t, IsDomainError(ErrStreamNotFound))
	require.True(t, IsDomainError(ErrSnapshotNotFound))
	require.True(t, IsDomainError(ErrSubscriptionNotFound))
	require.True(t, IsDomainError(&WrongVersionError{Expected: 1, Actual: 2}))
	require.True(t, IsDomainError(&WorkerError{Kind: "storage_full"}))

	// Wrapped domain errors still qualify.
	require.True(t, IsDomainError(fmt.Errorf("append: %w", ErrStreamNotFound)))

	require.False(t, IsDomainError(nil))
	require.False(t, IsDomainError(errors.New("connection reset")))
	require.False(t, IsDomainError(context.DeadlineExceeded))
}

func TestWorkerError_Message(t *testing.T) {
	require.Equal(t, "storage_full", (&WorkerError{Kind: "storage_full"}).Error())
	require.Equal(t, "storage_full: disk full", (&WorkerError{Kind: "storage_full", Message: "disk full"}).Error())
}
