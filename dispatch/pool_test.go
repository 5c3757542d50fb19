package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"eventgate/workerapi"
)

func TestConnPool_ReusesConnection(t *testing.T) {
	dialer := newFakeDialer()
	pool := newConnPool(dialer.dial, defaultDialTimeout())

	first, err := pool.get(context.Background(), "node1:3000")
	require.NoError(t, err)

	second, err := pool.get(context.Background(), "node1:3000")
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Equal(t, 1, dialer.dials)
}

func TestConnPool_RedialsClosedConnection(t *testing.T) {
	dialer := newFakeDialer()
	pool := newConnPool(dialer.dial, defaultDialTimeout())

	first, err := pool.get(context.Background(), "node1:3000")
	require.NoError(t, err)

	require.NoError(t, first.Close())

	second, err := pool.get(context.Background(), "node1:3000")
	require.NoError(t, err)

	require.NotSame(t, first, second)
	require.Equal(t, 2, dialer.dials)
}

func TestConnPool_EvictCloses(t *testing.T) {
	dialer := newFakeDialer()
	pool := newConnPool(dialer.dial, defaultDialTimeout())

	conn, err := pool.get(context.Background(), "node1:3000")
	require.NoError(t, err)

	pool.evict("node1:3000")
	require.True(t, conn.IsClosed())

	// Evicting an unknown endpoint is a no-op.
	pool.evict("node9:3000")
}

func TestConnPool_DialError(t *testing.T) {
	dialer := newFakeDialer()
	dialer.err = errors.New("connection refused")

	pool := newConnPool(dialer.dial, defaultDialTimeout())

	_, err := pool.get(context.Background(), "node1:3000")
	require.Error(t, err)
}

func TestConnPool_ConcurrentGetDialsOnce(t *testing.T) {
	dialer := newFakeDialer()
	pool := newConnPool(dialer.dial, defaultDialTimeout())

	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := pool.get(context.Background(), "node1:3000")
			require.NoError(t, err)
		}()
	}

	wg.Wait()
	require.Equal(t, 1, dialer.dials)
}

func TestConnPool_SlowDialDoesNotBlockOtherEndpoints(t *testing.T) {
	dialer := newFakeDialer()

	// node2 never accepts: the dial hangs until the dial timeout expires.
	dial := func(ctx context.Context, addr string) (workerapi.Conn, error) {
		if addr == "node2:3000" {
			<-ctx.Done()
			return nil, ctx.Err()
		}

		return dialer.dial(ctx, addr)
	}

	pool := newConnPool(dial, 2*time.Second)

	_, err := pool.get(context.Background(), "node1:3000")
	require.NoError(t, err)

	dialErr := make(chan error, 1)

	go func() {
		_, err := pool.get(context.Background(), "node2:3000")
		dialErr <- err
	}()

	time.Sleep(50 * time.Millisecond) // let the slow dial start

	start := time.Now()

	_, err = pool.get(context.Background(), "node1:3000")
	require.NoError(t, err)
	require.Less(t, time.Since(start), 100*time.Millisecond)

	require.Error(t, <-dialErr)
}

func defaultDialTimeout() time.Duration {
	return DefaultConfig().DialTimeout
}
