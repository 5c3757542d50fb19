package api

import (
	"context"

	"eventgate/membership"
	"eventgate/registration"
	"eventgate/registry"
	"eventgate/workerapi"
)

// Dispatcher is the routing surface the handlers forward to.
type Dispatcher interface {
	ListStores(ctx context.Context) ([]string, error)
	AppendEvents(ctx context.Context, storeID, stream string, events []workerapi.Event, expectedVersion int64) (int64, error)
	GetEvents(ctx context.Context, storeID, stream string, fromVersion int64, count int, dir workerapi.Direction) ([]workerapi.Event, error)
	StreamVersion(ctx context.Context, storeID, stream string) (int64, error)
	ListStreams(ctx context.Context, storeID string) ([]string, error)
	SaveSubscription(ctx context.Context, storeID string, sub workerapi.Subscription) error
	RemoveSubscription(ctx context.Context, storeID, subID string) error
	AckEvent(ctx context.Context, storeID, subID, eventID string) error
	RecordSnapshot(ctx context.Context, storeID string, snap workerapi.Snapshot) error
	ReadSnapshot(ctx context.Context, storeID, source string) (workerapi.Snapshot, error)
	DeleteSnapshot(ctx context.Context, storeID, source string) error
	ListSnapshots(ctx context.Context, storeID string) ([]workerapi.Snapshot, error)
}

// PeerDirectory exposes the membership view for the cluster endpoints.
type PeerDirectory interface {
	Peers() []membership.PeerInfo
}

// WorkerView exposes the registered-worker view for the status endpoint.
type WorkerView interface {
	AllWorkers(ctx context.Context) ([]registry.Handle, error)
	Stores(ctx context.Context) ([]string, error)
}

// Registrar exposes this instance's registration state.
type Registrar interface {
	State() registration.State
	InstanceID() string
}
