package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"eventgate/registry"
	"eventgate/workerapi"
)

type Config struct {
	// Workers is the registry view used to resolve targets. The target is
	// re-resolved on every request: there is no session affinity.
	Workers *registry.Client

	// Dialer establishes worker connections for the pool.
	Dialer workerapi.Dialer

	// CallTimeout bounds a single forwarded call.
	CallTimeout time.Duration

	// DialTimeout bounds establishing a new worker connection.
	DialTimeout time.Duration

	Logger kitlog.Logger
}

func DefaultConfig() Config {
	return Config{
		CallTimeout: 3 * time.Second,
		DialTimeout: 2 * time.Second,
		Logger:      kitlog.NewNopLogger(),
	}
}

// Dispatcher is the request-routing surface of the gateway. Every operation
// picks a uniformly random worker for the target store and forwards the
// call with a bounded timeout. There are no internal retries: an empty
// worker set or a transport failure surfaces immediately as a typed error
// and the retry decision stays with the caller.
type Dispatcher struct {
	workers     *registry.Client
	pool        *connPool
	callTimeout time.Duration
	logger      kitlog.Logger
	wg          sync.WaitGroup
}

func New(conf Config) *Dispatcher {
	return &Dispatcher{
		workers:     conf.Workers,
		pool:        newConnPool(conf.Dialer, conf.DialTimeout),
		callTimeout: conf.CallTimeout,
		logger:      conf.Logger,
	}
}

// Close waits for in-flight fire-and-forget calls and closes all pooled
// connections.
func (d *Dispatcher) Close() {
	d.wg.Wait()
	d.pool.closeAll()
}

// ListStores returns the stores that currently have at least one worker.
// This is answered from the registry view: no single worker can enumerate
// stores it does not host.
func (d *Dispatcher) ListStores(ctx context.Context) ([]string, error) {
	return d.workers.Stores(ctx)
}

// AppendEvents appends events to a stream, returning the new stream
// version. Pass workerapi.AnyVersion to skip the expected-version check.
func (d *Dispatcher) AppendEvents(
	ctx context.Context, storeID, stream string, events []workerapi.Event, expectedVersion int64,
) (int64, error) {
	var version int64

	err := d.call(ctx, storeID, func(ctx context.Context, conn workerapi.Conn) error {
		var err error
		version, err = conn.AppendEvents(ctx, stream, events, expectedVersion)

		return err
	})

	return version, err
}

// GetEvents reads events from a stream in the given direction.
func (d *Dispatcher) GetEvents(
	ctx context.Context, storeID, stream string, fromVersion int64, count int, dir workerapi.Direction,
) ([]workerapi.Event, error) {
	var events []workerapi.Event

	err := d.call(ctx, storeID, func(ctx context.Context, conn workerapi.Conn) error {
		var err error
		events, err = conn.GetEvents(ctx, stream, fromVersion, count, dir)

		return err
	})

	return events, err
}

// StreamVersion returns the current version of a stream.
func (d *Dispatcher) StreamVersion(ctx context.Context, storeID, stream string) (int64, error) {
	var version int64

	err := d.call(ctx, storeID, func(ctx context.Context, conn workerapi.Conn) error {
		var err error
		version, err = conn.StreamVersion(ctx, stream)

		return err
	})

	return version, err
}

// ListStreams returns the stream names known to one of the store's workers.
func (d *Dispatcher) ListStreams(ctx context.Context, storeID string) ([]string, error) {
	var streams []string

	err := d.call(ctx, storeID, func(ctx context.Context, conn workerapi.Conn) error {
		var err error
		streams, err = conn.ListStreams(ctx)

		return err
	})

	return streams, err
}

// SaveSubscription stores a subscription. Fire-and-forget: the call returns
// once a worker has been resolved, delivery failures are only logged.
func (d *Dispatcher) SaveSubscription(ctx context.Context, storeID string, sub workerapi.Subscription) error {
	return d.cast(ctx, storeID, "save_subscription", func(ctx context.Context, conn workerapi.Conn) error {
		return conn.SaveSubscription(ctx, sub)
	})
}

// RemoveSubscription deletes a subscription. Fire-and-forget.
func (d *Dispatcher) RemoveSubscription(ctx context.Context, storeID, subID string) error {
	return d.cast(ctx, storeID, "remove_subscription", func(ctx context.Context, conn workerapi.Conn) error {
		return conn.RemoveSubscription(ctx, subID)
	})
}

// AckEvent acknowledges an event delivery. Fire-and-forget.
func (d *Dispatcher) AckEvent(ctx context.Context, storeID, subID, eventID string) error {
	return d.cast(ctx, storeID, "ack_event", func(ctx context.Context, conn workerapi.Conn) error {
		return conn.AckEvent(ctx, subID, eventID)
	})
}

// RecordSnapshot stores a snapshot.
func (d *Dispatcher) RecordSnapshot(ctx context.Context, storeID string, snap workerapi.Snapshot) error {
	return d.call(ctx, storeID, func(ctx context.Context, conn workerapi.Conn) error {
		return conn.RecordSnapshot(ctx, snap)
	})
}

// ReadSnapshot reads the latest snapshot for a source.
func (d *Dispatcher) ReadSnapshot(ctx context.Context, storeID, source string) (workerapi.Snapshot, error) {
	var snap workerapi.Snapshot

	err := d.call(ctx, storeID, func(ctx context.Context, conn workerapi.Conn) error {
		var err error
		snap, err = conn.ReadSnapshot(ctx, source)

		return err
	})

	return snap, err
}

// DeleteSnapshot removes a snapshot. Fire-and-forget.
func (d *Dispatcher) DeleteSnapshot(ctx context.Context, storeID, source string) error {
	return d.cast(ctx, storeID, "delete_snapshot", func(ctx context.Context, conn workerapi.Conn) error {
		return conn.DeleteSnapshot(ctx, source)
	})
}

// ListSnapshots lists all snapshots held by one of the store's workers.
func (d *Dispatcher) ListSnapshots(ctx context.Context, storeID string) ([]workerapi.Snapshot, error) {
	var snaps []workerapi.Snapshot

	err := d.call(ctx, storeID, func(ctx context.Context, conn workerapi.Conn) error {
		var err error
		snaps, err = conn.ListSnapshots(ctx)

		return err
	})

	return snaps, err
}

// call resolves a random worker for the store and forwards a synchronous
// operation with a bounded timeout.
func (d *Dispatcher) call(ctx context.Context, storeID string, fn func(context.Context, workerapi.Conn) error) error {
	handle, err := d.workers.RandomWorkerFor(ctx, storeID)
	if err != nil {
		return err
	}

	conn, err := d.pool.get(ctx, handle.Endpoint)
	if err != nil {
		return translateErr(err)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	if err := translateErr(fn(callCtx, conn)); err != nil {
		if errors.Is(err, ErrDispatchFailed) {
			d.pool.evict(handle.Endpoint)
		}

		return err
	}

	return nil
}

// cast resolves a worker synchronously, so an empty registry still returns
// ErrNoWorkersAvailable immediately, then sends the operation without
// waiting for the reply.
func (d *Dispatcher) cast(ctx context.Context, storeID, op string, fn func(context.Context, workerapi.Conn) error) error {
	handle, err := d.workers.RandomWorkerFor(ctx, storeID)
	if err != nil {
		return err
	}

	conn, err := d.pool.get(ctx, handle.Endpoint)
	if err != nil {
		return translateErr(err)
	}

	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		// Detached from the caller's context: the caller does not observe
		// the outcome of a fire-and-forget call.
		callCtx, cancel := context.WithTimeout(context.Background(), d.callTimeout)
		defer cancel()

		if err := translateErr(fn(callCtx, conn)); err != nil {
			if errors.Is(err, ErrDispatchFailed) {
				d.pool.evict(handle.Endpoint)
			}

			level.Warn(d.logger).Log(
				"msg", "fire-and-forget dispatch failed",
				"op", op,
				"store", storeID,
				"worker", handle.Key.String(),
				"err", err,
			)
		}
	}()

	return nil
}
