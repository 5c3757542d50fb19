package grpcclient

import (
	"context"
	"sync/atomic"

	"google.golang.org/grpc"

	"eventgate/workerapi"
)

// Method names of the worker service. The actual service implementation
// lives on the store nodes.
const (
	methodAppendEvents       = "/eventstore.v1.Worker/AppendEvents"
	methodGetEvents          = "/eventstore.v1.Worker/GetEvents"
	methodStreamVersion      = "/eventstore.v1.Worker/StreamVersion"
	methodListStreams        = "/eventstore.v1.Worker/ListStreams"
	methodSaveSubscription   = "/eventstore.v1.Worker/SaveSubscription"
	methodRemoveSubscription = "/eventstore.v1.Worker/RemoveSubscription"
	methodAckEvent           = "/eventstore.v1.Worker/AckEvent"
	methodRecordSnapshot     = "/eventstore.v1.Worker/RecordSnapshot"
	methodReadSnapshot       = "/eventstore.v1.Worker/ReadSnapshot"
	methodDeleteSnapshot     = "/eventstore.v1.Worker/DeleteSnapshot"
	methodListSnapshots      = "/eventstore.v1.Worker/ListSnapshots"
	methodServices           = "/eventstore.v1.Node/Services"
)

// Conn is a gRPC-backed worker connection.
type Conn struct {
	cc     *grpc.ClientConn
	closed int32
}

var _ workerapi.Conn = (*Conn)(nil)

func (c *Conn) AppendEvents(
	ctx context.Context, stream string, events []workerapi.Event, expectedVersion int64,
) (int64, error) {
	req := appendEventsRequest{
		Stream:          stream,
		Events:          events,
		ExpectedVersion: expectedVersion,
	}

	var resp appendEventsResponse
	if err := c.cc.Invoke(ctx, methodAppendEvents, &req, &resp); err != nil {
		return 0, err
	}

	if err := resp.Err.unwrap(); err != nil {
		return 0, err
	}

	return resp.StreamVersion, nil
}

func (c *Conn) GetEvents(
	ctx context.Context, stream string, fromVersion int64, count int, dir workerapi.Direction,
) ([]workerapi.Event, error) {
	req := getEventsRequest{
		Stream:      stream,
		FromVersion: fromVersion,
		Count:       count,
		Backward:    dir == workerapi.Backward,
	}

	var resp getEventsResponse
	if err := c.cc.Invoke(ctx, methodGetEvents, &req, &resp); err != nil {
		return nil, err
	}

	if err := resp.Err.unwrap(); err != nil {
		return nil, err
	}

	return resp.Events, nil
}

func (c *Conn) StreamVersion(ctx context.Context, stream string) (int64, error) {
	req := streamRequest{Stream: stream}

	var resp streamVersionResponse
	if err := c.cc.Invoke(ctx, methodStreamVersion, &req, &resp); err != nil {
		return 0, err
	}

	if err := resp.Err.unwrap(); err != nil {
		return 0, err
	}

	return resp.Version, nil
}

func (c *Conn) ListStreams(ctx context.Context) ([]string, error) {
	var resp listStreamsResponse
	if err := c.cc.Invoke(ctx, methodListStreams, &emptyRequest{}, &resp); err != nil {
		return nil, err
	}

	if err := resp.Err.unwrap(); err != nil {
		return nil, err
	}

	return resp.Streams, nil
}

func (c *Conn) SaveSubscription(ctx context.Context, sub workerapi.Subscription) error {
	req := saveSubscriptionRequest{Subscription: sub}

	var resp statusResponse
	if err := c.cc.Invoke(ctx, methodSaveSubscription, &req, &resp); err != nil {
		return err
	}

	return resp.Err.unwrap()
}

func (c *Conn) RemoveSubscription(ctx context.Context, id string) error {
	req := subscriptionRequest{ID: id}

	var resp statusResponse
	if err := c.cc.Invoke(ctx, methodRemoveSubscription, &req, &resp); err != nil {
		return err
	}

	return resp.Err.unwrap()
}

func (c *Conn) AckEvent(ctx context.Context, subID, eventID string) error {
	req := ackEventRequest{SubscriptionID: subID, EventID: eventID}

	var resp statusResponse
	if err := c.cc.Invoke(ctx, methodAckEvent, &req, &resp); err != nil {
		return err
	}

	return resp.Err.unwrap()
}

func (c *Conn) RecordSnapshot(ctx context.Context, snap workerapi.Snapshot) error {
	req := recordSnapshotRequest{Snapshot: snap}

	var resp statusResponse
	if err := c.cc.Invoke(ctx, methodRecordSnapshot, &req, &resp); err != nil {
		return err
	}

	return resp.Err.unwrap()
}

func (c *Conn) ReadSnapshot(ctx context.Context, source string) (workerapi.Snapshot, error) {
	req := snapshotRequest{Source: source}

	var resp readSnapshotResponse
	if err := c.cc.Invoke(ctx, methodReadSnapshot, &req, &resp); err != nil {
		return workerapi.Snapshot{}, err
	}

	if err := resp.Err.unwrap(); err != nil {
		return workerapi.Snapshot{}, err
	}

	return resp.Snapshot, nil
}

func (c *Conn) DeleteSnapshot(ctx context.Context, source string) error {
	req := snapshotRequest{Source: source}

	var resp statusResponse
	if err := c.cc.Invoke(ctx, methodDeleteSnapshot, &req, &resp); err != nil {
		return err
	}

	return resp.Err.unwrap()
}

func (c *Conn) ListSnapshots(ctx context.Context) ([]workerapi.Snapshot, error) {
	var resp listSnapshotsResponse
	if err := c.cc.Invoke(ctx, methodListSnapshots, &emptyRequest{}, &resp); err != nil {
		return nil, err
	}

	if err := resp.Err.unwrap(); err != nil {
		return nil, err
	}

	return resp.Snapshots, nil
}

func (c *Conn) Services(ctx context.Context) ([]string, error) {
	var resp servicesResponse
	if err := c.cc.Invoke(ctx, methodServices, &emptyRequest{}, &resp); err != nil {
		return nil, err
	}

	if err := resp.Err.unwrap(); err != nil {
		return nil, err
	}

	return resp.Services, nil
}

func (c *Conn) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *Conn) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	return c.cc.Close()
}
