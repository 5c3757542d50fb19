package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/stretchr/testify/require"

	"eventgate/registry"
	"eventgate/workerapi"
)

// fakeConn is a scriptable worker connection. Every operation routes through
// handle, so tests only override the behavior they care about.
type fakeConn struct {
	endpoint string
	calls    int32
	closed   int32
	handle   func(ctx context.Context) error
	appendFn func(ctx context.Context, stream string, events []workerapi.Event, expectedVersion int64) (int64, error)
}

func (c *fakeConn) invoke(ctx context.Context) error {
	atomic.AddInt32(&c.calls, 1)

	if c.handle != nil {
		return c.handle(ctx)
	}

	return nil
}

func (c *fakeConn) callCount() int {
	return int(atomic.LoadInt32(&c.calls))
}

func (c *fakeConn) AppendEvents(ctx context.Context, stream string, events []workerapi.Event, expectedVersion int64) (int64, error) {
	if c.appendFn != nil {
		atomic.AddInt32(&c.calls, 1)
		return c.appendFn(ctx, stream, events, expectedVersion)
	}

	return 0, c.invoke(ctx)
}

func (c *fakeConn) GetEvents(ctx context.Context, stream string, fromVersion int64, count int, dir workerapi.Direction) ([]workerapi.Event, error) {
	return nil, c.invoke(ctx)
}

func (c *fakeConn) StreamVersion(ctx context.Context, stream string) (int64, error) {
	return 0, c.invoke(ctx)
}

func (c *fakeConn) ListStreams(ctx context.Context) ([]string, error) {
	return nil, c.invoke(ctx)
}

func (c *fakeConn) SaveSubscription(ctx context.Context, sub workerapi.Subscription) error {
	return c.invoke(ctx)
}

func (c *fakeConn) RemoveSubscription(ctx context.Context, id string) error {
	return c.invoke(ctx)
}

func (c *fakeConn) AckEvent(ctx context.Context, subID, eventID string) error {
	return c.invoke(ctx)
}

func (c *fakeConn) RecordSnapshot(ctx context.Context, snap workerapi.Snapshot) error {
	return c.invoke(ctx)
}

func (c *fakeConn) ReadSnapshot(ctx context.Context, source string) (workerapi.Snapshot, error) {
	return workerapi.Snapshot{}, c.invoke(ctx)
}

func (c *fakeConn) DeleteSnapshot(ctx context.Context, source string) error {
	return c.invoke(ctx)
}

func (c *fakeConn) ListSnapshots(ctx context.Context) ([]workerapi.Snapshot, error) {
	return nil, c.invoke(ctx)
}

func (c *fakeConn) Services(ctx context.Context) ([]string, error) {
	return []string{workerapi.WorkerServiceName}, nil
}

func (c *fakeConn) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *fakeConn) Close() error {
	atomic.StoreInt32(&c.closed, 1)
	return nil
}

// fakeDialer hands out one fakeConn per endpoint and remembers them.
type fakeDialer struct {
	mut   sync.Mutex
	conns map[string]*fakeConn
	dials int
	err   error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(map[string]*fakeConn)}
}

func (d *fakeDialer) dial(ctx context.Context, addr string) (workerapi.Conn, error) {
	d.mut.Lock()
	defer d.mut.Unlock()

	d.dials++

	if d.err != nil {
		return nil, d.err
	}

	conn, ok := d.conns[addr]
	if !ok || conn.IsClosed() {
		conn = &fakeConn{endpoint: addr}
		d.conns[addr] = conn
	}

	return conn, nil
}

func (d *fakeDialer) conn(addr string) *fakeConn {
	d.mut.Lock()
	defer d.mut.Unlock()

	return d.conns[addr]
}

func addWorker(dir *registry.InMemDirectory, store, node string, port uint16) registry.Handle {
	h := registry.Handle{
		Key: registry.Key{
			Kind:    registry.KindWorker,
			StoreID: store,
			Node:    node,
			Port:    port,
		},
		Endpoint:     node + ":3000",
		RegisteredAt: time.Unix(100, 0),
	}

	dir.AddWorker(h)

	return h
}

func newTestDispatcher(dir *registry.InMemDirectory, dialer *fakeDialer) *Dispatcher {
	conf := DefaultConfig()
	conf.Workers = registry.NewClient(dir)
	conf.Dialer = dialer.dial
	conf.Logger = kitlog.NewNopLogger()

	return New(conf)
}

func TestDispatcher_DistributesAcrossWorkers(t *testing.T) {
	dir := registry.NewInMemDirectory()
	addWorker(dir, "orders", "node1", 3001)
	addWorker(dir, "orders", "node2", 3001)
	addWorker(dir, "orders", "node3", 3001)

	dialer := newFakeDialer()
	d := newTestDispatcher(dir, dialer)
	defer d.Close()

	for i := 0; i < 300; i++ {
		_, err := d.StreamVersion(context.Background(), "orders", "stream-1")
		require.NoError(t, err)
	}

	total := 0

	for _, node := range []string{"node1", "node2", "node3"} {
		conn := dialer.conn(node + ":3000")
		require.NotNil(t, conn, "worker on %s never called", node)
		require.Greater(t, conn.callCount(), 50, "worker on %s starved", node)
		total += conn.callCount()
	}

	require.Equal(t, 300, total)
}

func TestDispatcher_NoWorkersAvailable(t *testing.T) {
	dir := registry.NewInMemDirectory()
	dialer := newFakeDialer()
	d := newTestDispatcher(dir, dialer)
	defer d.Close()

	start := time.Now()
	_, err := d.GetEvents(context.Background(), "orders", "stream-1", 0, 10, workerapi.Forward)
	require.ErrorIs(t, err, registry.ErrNoWorkersAvailable)

	// The error is immediate, not the result of a timeout.
	require.Less(t, time.Since(start), 100*time.Millisecond)

	_, err = d.AppendEvents(context.Background(), "orders", "stream-1", nil, workerapi.AnyVersion)
	require.ErrorIs(t, err, registry.ErrNoWorkersAvailable)

	// Fire-and-forget operations still report an empty registry synchronously.
	err = d.AckEvent(context.Background(), "orders", "sub-1", "ev-1")
	require.ErrorIs(t, err, registry.ErrNoWorkersAvailable)

	require.Zero(t, dialer.dials)
}

func TestDispatcher_DomainErrorsPassThrough(t *testing.T) {
	dir := registry.NewInMemDirectory()
	addWorker(dir, "orders", "node1", 3001)

	dialer := newFakeDialer()
	d := newTestDispatcher(dir, dialer)
	defer d.Close()

	wantErr := &workerapi.WrongVersionError{Expected: 4, Actual: 7}

	// Prime the pool, then script the connection.
	_, err := d.StreamVersion(context.Background(), "orders", "stream-1")
	require.NoError(t, err)

	conn := dialer.conn("node1:3000")
	conn.appendFn = func(ctx context.Context, stream string, events []workerapi.Event, expectedVersion int64) (int64, error) {
		return 0, wantErr
	}

	_, err = d.AppendEvents(context.Background(), "orders", "stream-1", nil, 4)

	var wrongVersion *workerapi.WrongVersionError
	require.ErrorAs(t, err, &wrongVersion)
	require.Equal(t, int64(7), wrongVersion.Actual)

	// A domain error is not a transport failure: the connection stays pooled.
	require.False(t, conn.IsClosed())
}

func TestDispatcher_TransportFailureEvictsConn(t *testing.T) {
	dir := registry.NewInMemDirectory()
	addWorker(dir, "orders", "node1", 3001)

	dialer := newFakeDialer()
	d := newTestDispatcher(dir, dialer)
	defer d.Close()

	_, err := d.StreamVersion(context.Background(), "orders", "stream-1")
	require.NoError(t, err)

	conn := dialer.conn("node1:3000")
	conn.handle = func(ctx context.Context) error {
		return errors.New("connection reset")
	}

	_, err = d.StreamVersion(context.Background(), "orders", "stream-1")
	require.ErrorIs(t, err, ErrDispatchFailed)
	require.True(t, conn.IsClosed())

	// The next call dials a fresh connection.
	_, err = d.StreamVersion(context.Background(), "orders", "stream-1")
	require.NoError(t, err)
	require.NotSame(t, conn, dialer.conn("node1:3000"))
}

func TestDispatcher_SlowWorkerTimesOut(t *testing.T) {
	dir := registry.NewInMemDirectory()
	addWorker(dir, "orders", "node1", 3001)
	addWorker(dir, "payments", "node2", 3002)

	dialer := newFakeDialer()

	conf := DefaultConfig()
	conf.Workers = registry.NewClient(dir)
	conf.CallTimeout = 50 * time.Millisecond
	conf.Dialer = dialer.dial
	conf.Logger = kitlog.NewNopLogger()

	d := New(conf)
	defer d.Close()

	// Prime both connections.
	_, err := d.StreamVersion(context.Background(), "orders", "s")
	require.NoError(t, err)
	_, err = d.StreamVersion(context.Background(), "payments", "s")
	require.NoError(t, err)

	slow := dialer.conn("node1:3000")
	slow.handle = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	start := time.Now()
	_, err = d.StreamVersion(context.Background(), "orders", "s")
	require.ErrorIs(t, err, ErrTimeout)
	require.Less(t, time.Since(start), time.Second)

	// A stuck worker on one store does not affect calls to another.
	_, err = d.StreamVersion(context.Background(), "payments", "s")
	require.NoError(t, err)
}

func TestDispatcher_RemovedWorkerStopsReceiving(t *testing.T) {
	dir := registry.NewInMemDirectory()
	h1 := addWorker(dir, "orders", "node1", 3001)
	addWorker(dir, "orders", "node2", 3001)

	dialer := newFakeDialer()
	d := newTestDispatcher(dir, dialer)
	defer d.Close()

	for i := 0; i < 50; i++ {
		_, err := d.StreamVersion(context.Background(), "orders", "s")
		require.NoError(t, err)
	}

	dir.RemoveWorker(h1.Key)

	before := 0
	if conn := dialer.conn("node1:3000"); conn != nil {
		before = conn.callCount()
	}

	for i := 0; i < 50; i++ {
		_, err := d.StreamVersion(context.Background(), "orders", "s")
		require.NoError(t, err)
	}

	if conn := dialer.conn("node1:3000"); conn != nil {
		require.Equal(t, before, conn.callCount())
	}

	require.Equal(t, 100-before, dialer.conn("node2:3000").callCount())
}

func TestDispatcher_FireAndForgetDelivers(t *testing.T) {
	dir := registry.NewInMemDirectory()
	addWorker(dir, "orders", "node1", 3001)

	dialer := newFakeDialer()
	d := newTestDispatcher(dir, dialer)

	err := d.SaveSubscription(context.Background(), "orders", workerapi.Subscription{
		ID:       "sub-1",
		Selector: workerapi.Selector{Kind: workerapi.ByStream, Value: "stream-1"},
	})
	require.NoError(t, err)

	// Close waits for detached deliveries.
	d.Close()

	require.Equal(t, 1, dialer.conn("node1:3000").callCount())
}

func TestDispatcher_ListStoresFromRegistry(t *testing.T) {
	dir := registry.NewInMemDirectory()
	addWorker(dir, "payments", "node1", 3002)
	addWorker(dir, "orders", "node1", 3001)

	dialer := newFakeDialer()
	d := newTestDispatcher(dir, dialer)
	defer d.Close()

	stores, err := d.ListStores(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"orders", "payments"}, stores)

	// Answered from the registry view, no worker call involved.
	require.Zero(t, dialer.dials)
}
