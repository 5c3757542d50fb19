package grpcclient

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"eventgate/workerapi"
)

// Dial creates a new gRPC connection to the worker at the given address. It
// blocks until the connection is established and ready, or the context is
// canceled.
func Dial(ctx context.Context, addr string) (workerapi.Conn, error) {
	creds := insecure.NewCredentials()

	grpcConn, err := grpc.DialContext(
		ctx,
		addr,
		grpc.WithBlock(),
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial failed: %w", err)
	}

	return &Conn{cc: grpcConn}, nil
}

var _ workerapi.Dialer = Dial
