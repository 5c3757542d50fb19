package grpcutil

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorCode extracts a gRPC error code from an error. If the error is not a
// gRPC error, it returns codes.Unknown.
func ErrorCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}

	if st, ok := status.FromError(err); ok {
		return st.Code()
	}

	return codes.Unknown
}

func IsCanceled(err error) bool {
	return ErrorCode(err) == codes.Canceled
}

// IsTimeout reports whether the error is a deadline exceeded status,
// which is how a timed-out remote call surfaces on the caller side.
func IsTimeout(err error) bool {
	return ErrorCode(err) == codes.DeadlineExceeded
}

// IsUnavailable reports whether the remote endpoint could not be reached
// at all (connection refused, broken transport, server shutting down).
func IsUnavailable(err error) bool {
	return ErrorCode(err) == codes.Unavailable
}
