package membership

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"eventgate/internal/clock"
)

type fakeProber struct {
	probes int32
	result bool
	err    error
}

func (p *fakeProber) HostsWorkers(ctx context.Context, addr string) (bool, error) {
	atomic.AddInt32(&p.probes, 1)
	return p.result, p.err
}

func (p *fakeProber) probeCount() int {
	return int(atomic.LoadInt32(&p.probes))
}

func newTestDirectory(prober Prober, cl clock.Clock) *Directory {
	conf := DefaultDirectoryConfig()
	conf.Clock = cl

	return NewDirectory(prober, conf)
}

func TestDirectory_ClassifyProbesOnce(t *testing.T) {
	prober := &fakeProber{result: true}
	cl := clock.NewFake()
	dir := newTestDirectory(prober, cl)

	dir.RecordConnect("node1", "10.0.0.1:45892", "10.0.0.1:3000")

	for i := 0; i < 10; i++ {
		class := dir.Classify(context.Background(), "node1")
		require.Equal(t, ClassStoreHost, class)
	}

	require.Equal(t, 1, prober.probeCount())
}

func TestDirectory_ClassifyReprobesAfterTTL(t *testing.T) {
	prober := &fakeProber{result: true}
	cl := clock.NewFake()
	dir := newTestDirectory(prober, cl)

	dir.RecordConnect("node1", "10.0.0.1:45892", "10.0.0.1:3000")

	require.Equal(t, ClassStoreHost, dir.Classify(context.Background(), "node1"))
	require.Equal(t, 1, prober.probeCount())

	cl.Advance(5*time.Minute + time.Second)

	require.Equal(t, ClassStoreHost, dir.Classify(context.Background(), "node1"))
	require.Equal(t, 2, prober.probeCount())
}

func TestDirectory_DisconnectEvictsClassification(t *testing.T) {
	prober := &fakeProber{result: true}
	cl := clock.NewFake()
	dir := newTestDirectory(prober, cl)

	dir.RecordConnect("node1", "10.0.0.1:45892", "10.0.0.1:3000")
	dir.Classify(context.Background(), "node1")
	require.Equal(t, ClassStoreHost, dir.Classification("node1"))

	dir.RecordDisconnect("node1")
	require.Equal(t, ClassUnknown, dir.Classification("node1"))

	// A reconnect must re-verify rather than trust the old entry.
	dir.RecordConnect("node1", "10.0.0.1:45892", "10.0.0.1:3000")
	dir.Classify(context.Background(), "node1")
	require.Equal(t, 2, prober.probeCount())
}

func TestDirectory_ProbeFailureFailsOpen(t *testing.T) {
	prober := &fakeProber{err: errors.New("connection refused")}
	cl := clock.NewFake()
	dir := newTestDirectory(prober, cl)

	dir.RecordConnect("node1", "10.0.0.1:45892", "10.0.0.1:3000")

	require.Equal(t, ClassPlainPeer, dir.Classify(context.Background(), "node1"))

	// The failure is not cached, the next call probes again.
	prober.err = nil
	prober.result = true

	require.Equal(t, ClassStoreHost, dir.Classify(context.Background(), "node1"))
	require.Equal(t, 2, prober.probeCount())
}

func TestDirectory_PeerWithoutServerAddrIsPlain(t *testing.T) {
	prober := &fakeProber{result: true}
	cl := clock.NewFake()
	dir := newTestDirectory(prober, cl)

	dir.RecordConnect("node1", "10.0.0.1:45892", "")

	require.Equal(t, ClassPlainPeer, dir.Classify(context.Background(), "node1"))
	require.Equal(t, 0, prober.probeCount())
}

func TestDirectory_ClassificationExpires(t *testing.T) {
	prober := &fakeProber{result: true}
	cl := clock.NewFake()
	dir := newTestDirectory(prober, cl)

	dir.RecordConnect("node1", "10.0.0.1:45892", "10.0.0.1:3000")
	dir.Classify(context.Background(), "node1")

	require.Equal(t, ClassStoreHost, dir.Classification("node1"))

	cl.Advance(6 * time.Minute)

	require.Equal(t, ClassUnknown, dir.Classification("node1"))
}

func TestDirectory_RemoveDropsPeer(t *testing.T) {
	prober := &fakeProber{result: true}
	cl := clock.NewFake()
	dir := newTestDirectory(prober, cl)

	dir.RecordConnect("node1", "10.0.0.1:45892", "10.0.0.1:3000")
	dir.RecordConnect("node2", "10.0.0.2:45892", "")
	require.Len(t, dir.Peers(), 2)

	dir.Remove("node1")

	peers := dir.Peers()
	require.Len(t, peers, 1)
	require.Equal(t, "node2", peers[0].Name)
}
