package discovery

import (
	"net"
	"testing"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

func TestBeacon_ReceiveLoopStopsOnBrokenSocket(t *testing.T) {
	listener, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	b := &Beacon{
		listener: listener,
		seeds:    make(chan string, 1),
		stop:     make(chan struct{}),
		logger:   kitlog.NewNopLogger(),
	}

	// The socket dies out from under the loop without Stop being called,
	// so every read fails immediately. The loop must give up rather than
	// retry forever.
	require.NoError(t, listener.Close())

	b.wg.Add(1)
	go b.receiveLoop()

	done := make(chan struct{})

	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("receive loop kept running on a dead socket")
	}
}
