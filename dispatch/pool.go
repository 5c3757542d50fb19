package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eventgate/workerapi"
)

// connPool keeps one connection per worker endpoint. Connections are dialed
// lazily and kept until they are closed or evicted after a transport
// failure. Dialing happens outside the registry lock, so a worker that is
// slow to accept never stalls dispatches to already-connected workers.
type connPool struct {
	mut         sync.RWMutex
	conns       map[string]workerapi.Conn
	waiting     sync.Map
	dialer      workerapi.Dialer
	dialTimeout time.Duration
}

func newConnPool(dialer workerapi.Dialer, dialTimeout time.Duration) *connPool {
	return &connPool{
		conns:       make(map[string]workerapi.Conn),
		dialer:      dialer,
		dialTimeout: dialTimeout,
	}
}

// get returns a live connection to the endpoint, dialing one if needed.
func (p *connPool) get(ctx context.Context, endpoint string) (workerapi.Conn, error) {
	if conn, ok := p.loadConn(endpoint); ok {
		return conn, nil
	}

	return p.connect(ctx, endpoint)
}

// loadConn returns a usable pooled connection. A connection that was closed
// behind our back is dropped from the registry on the way.
func (p *connPool) loadConn(endpoint string) (workerapi.Conn, bool) {
	p.mut.RLock()

	conn, ok := p.conns[endpoint]
	if !ok {
		p.mut.RUnlock()
		return nil, false
	}

	if conn.IsClosed() {
		p.mut.RUnlock()
		p.mut.Lock()

		// A new connection might have been created while we were waiting
		// for the lock.
		if conn, ok := p.conns[endpoint]; ok && !conn.IsClosed() {
			p.mut.Unlock()
			return conn, true
		}

		delete(p.conns, endpoint)
		p.mut.Unlock()

		return nil, false
	}

	p.mut.RUnlock()

	return conn, true
}

// connect dials the endpoint without holding the pool lock. Concurrent
// callers for the same endpoint wait on a shared channel instead of dialing
// a second connection.
func (p *connPool) connect(ctx context.Context, endpoint string) (workerapi.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()

	var retry bool

	for {
		d := make(chan struct{})

		// Check if there is already a goroutine dialing the endpoint.
		// If so, wait for it to finish or for the context to expire.
		actual, loaded := p.waiting.LoadOrStore(endpoint, d)
		if !loaded {
			// We are the one dialing.
			defer p.waiting.Delete(endpoint)
			defer close(d)

			break
		}

		// Since LoadOrStore failed, there is already a channel in the map,
		// so we need to discard the one we just created.
		close(d)

		select {
		case <-actual.(chan struct{}):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		// Try to pick up the connection created in the other goroutine.
		if conn, ok := p.loadConn(endpoint); ok {
			return conn, nil
		}

		// The other goroutine has failed to connect. Make one more attempt.
		if !retry {
			retry = true
			continue
		}

		return nil, fmt.Errorf("failed to connect in another goroutine")
	}

	conn, err := p.dialer(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	// A connection might have been added while we were dialing. If so,
	// discard the one we just created and use the existing one.
	p.mut.Lock()

	if actual, ok := p.conns[endpoint]; ok && !actual.IsClosed() {
		p.mut.Unlock()
		_ = conn.Close()

		return actual, nil
	}

	p.conns[endpoint] = conn
	p.mut.Unlock()

	return conn, nil
}

// evict closes and drops the connection to the endpoint. Called after a
// transport failure so the next dispatch re-dials instead of reusing a
// broken connection.
func (p *connPool) evict(endpoint string) {
	p.mut.Lock()
	defer p.mut.Unlock()

	if conn, ok := p.conns[endpoint]; ok {
		delete(p.conns, endpoint)

		_ = conn.Close()
	}
}

// closeAll closes every pooled connection.
func (p *connPool) closeAll() {
	p.mut.Lock()
	defer p.mut.Unlock()

	for endpoint, conn := range p.conns {
		delete(p.conns, endpoint)

		_ = conn.Close()
	}
}
