package workerapi

import "context"

// Conn is a client connection to a remote event-store worker. The store
// engine behind it is an external system: the gateway only selects workers
// and forwards operations, it never interprets stream contents.
type Conn interface {
	// AppendEvents appends events to a stream and returns the new stream
	// version. expectedVersion enables the optimistic-concurrency check,
	// pass AnyVersion to append unconditionally.
	AppendEvents(ctx context.Context, stream string, events []Event, expectedVersion int64) (int64, error)

	// GetEvents reads up to count events starting at fromVersion, in the
	// given direction.
	GetEvents(ctx context.Context, stream string, fromVersion int64, count int, dir Direction) ([]Event, error)

	// StreamVersion returns the current version of a stream.
	StreamVersion(ctx context.Context, stream string) (int64, error)

	// ListStreams returns the names of all streams hosted by the worker.
	ListStreams(ctx context.Context) ([]string, error)

	// SaveSubscription creates or replaces a durable subscription.
	SaveSubscription(ctx context.Context, sub Subscription) error

	// RemoveSubscription deletes a subscription by ID.
	RemoveSubscription(ctx context.Context, id string) error

	// AckEvent acknowledges delivery of an event to a subscription.
	AckEvent(ctx context.Context, subID, eventID string) error

	// RecordSnapshot stores a snapshot for a source, replacing any previous one.
	RecordSnapshot(ctx context.Context, snap Snapshot) error

	// ReadSnapshot returns the latest snapshot for a source.
	ReadSnapshot(ctx context.Context, source string) (Snapshot, error)

	// DeleteSnapshot removes the snapshot for a source.
	DeleteSnapshot(ctx context.Context, source string) error

	// ListSnapshots returns all snapshots held by the worker.
	ListSnapshots(ctx context.Context) ([]Snapshot, error)

	// Services lists the service names running on the remote node. Used by
	// the capability probe to tell store hosts apart from plain peers.
	Services(ctx context.Context) ([]string, error)

	// IsClosed returns true if the connection is closed and cannot be used.
	// Pooled connections are evicted based on this.
	IsClosed() bool

	// Close closes the connection. It is not safe to call on a connection
	// that may still be in use by other goroutines.
	Close() error
}

// Dialer establishes a connection to the worker at the given address.
type Dialer func(ctx context.Context, addr string) (Conn, error)

// WorkerServiceName is the service name a store-hosting node advertises in
// its service list.
const WorkerServiceName = "eventstore.v1.Worker"
