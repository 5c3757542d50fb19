package grpcclient

import (
	"testing"

	"github.com/stretchr/testify/require"

	"eventgate/workerapi"
)

func TestWireError_Unwrap(t *testing.T) {
	var nilErr *wireError
	require.NoError(t, nilErr.unwrap())

	err := (&wireError{Kind: errKindStreamNotFound}).unwrap()
	require.ErrorIs(t, err, workerapi.ErrStreamNotFound)

	err = (&wireError{Kind: errKindWrongVersion, Expected: 4, Actual: 7}).unwrap()

	var wrongVersion *workerapi.WrongVersionError
	require.ErrorAs(t, err, &wrongVersion)
	require.Equal(t, int64(4), wrongVersion.Expected)
	require.Equal(t, int64(7), wrongVersion.Actual)
}

func TestWireError_UnknownKindPreserved(t *testing.T) {
	err := (&wireError{Kind: "quota_exceeded", Message: "too many streams"}).unwrap()

	var workerErr *workerapi.WorkerError
	require.ErrorAs(t, err, &workerErr)
	require.Equal(t, "quota_exceeded", workerErr.Kind)
	require.Equal(t, "too many streams", workerErr.Message)
	require.True(t, workerapi.IsDomainError(err))
}
