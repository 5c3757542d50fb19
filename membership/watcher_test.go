package membership

import (
	"testing"
	"time"

	"github.com/hashicorp/memberlist"
	"github.com/stretchr/testify/require"

	"eventgate/internal/clock"
)

type fakeClusterView struct {
	events  chan memberlist.NodeEvent
	members []Peer
	self    string
}

func newFakeClusterView() *fakeClusterView {
	return &fakeClusterView{
		events: make(chan memberlist.NodeEvent, 16),
		self:   "self",
	}
}

func (c *fakeClusterView) Events() <-chan memberlist.NodeEvent { return c.events }
func (c *fakeClusterView) Members() []Peer                     { return c.members }
func (c *fakeClusterView) SelfName() string                    { return c.self }

func storeNode(t *testing.T, name string) *memberlist.Node {
	t.Helper()

	meta, err := EncodeMeta(NodeMeta{
		Kind:       NodeKindStore,
		ServerAddr: "10.0.0.1:3000",
	})
	require.NoError(t, err)

	return &memberlist.Node{Name: name, Meta: meta}
}

func waitForEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()

	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func startTestWatcher(t *testing.T, view ClusterView, prober Prober) (*Watcher, *Directory) {
	t.Helper()

	dirConf := DefaultDirectoryConfig()
	dirConf.Clock = clock.NewFake()
	dir := NewDirectory(prober, dirConf)

	conf := DefaultWatcherConfig()
	conf.ReconcileInterval = time.Hour

	watcher := NewWatcher(view, dir, conf)
	watcher.Start()
	t.Cleanup(watcher.Stop)

	return watcher, dir
}

func TestWatcher_StorePeerJoin(t *testing.T) {
	view := newFakeClusterView()
	watcher, _ := startTestWatcher(t, view, &fakeProber{result: true})

	view.events <- memberlist.NodeEvent{
		Event: memberlist.NodeJoin,
		Node:  storeNode(t, "node1"),
	}

	ev := waitForEvent(t, watcher.Notifications())
	connected, ok := ev.(*PeerConnected)
	require.True(t, ok)
	require.Equal(t, "node1", connected.Name)

	ev = waitForEvent(t, watcher.Notifications())
	joined, ok := ev.(*StorePeerJoined)
	require.True(t, ok)
	require.Equal(t, "node1", joined.Name)
}

func TestWatcher_PlainPeerJoinEmitsNoStoreEvent(t *testing.T) {
	view := newFakeClusterView()
	watcher, dir := startTestWatcher(t, view, &fakeProber{result: false})

	view.events <- memberlist.NodeEvent{
		Event: memberlist.NodeJoin,
		Node:  storeNode(t, "node1"),
	}

	ev := waitForEvent(t, watcher.Notifications())
	_, ok := ev.(*PeerConnected)
	require.True(t, ok)

	// The classification probe runs asynchronously.
	require.Eventually(t, func() bool {
		return dir.Classification("node1") == ClassPlainPeer
	}, time.Second, 10*time.Millisecond)

	select {
	case ev := <-watcher.Notifications():
		t.Fatalf("unexpected event: %T", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatcher_StorePeerLeave(t *testing.T) {
	view := newFakeClusterView()
	watcher, dir := startTestWatcher(t, view, &fakeProber{result: true})

	node := storeNode(t, "node1")
	view.events <- memberlist.NodeEvent{Event: memberlist.NodeJoin, Node: node}

	waitForEvent(t, watcher.Notifications()) // PeerConnected
	waitForEvent(t, watcher.Notifications()) // StorePeerJoined

	view.events <- memberlist.NodeEvent{Event: memberlist.NodeLeave, Node: node}

	ev := waitForEvent(t, watcher.Notifications())
	disconnected, ok := ev.(*PeerDisconnected)
	require.True(t, ok)
	require.Equal(t, "node1", disconnected.Name)

	ev = waitForEvent(t, watcher.Notifications())
	left, ok := ev.(*StorePeerLeft)
	require.True(t, ok)
	require.Equal(t, "node1", left.Name)

	require.Equal(t, ClassUnknown, dir.Classification("node1"))
}

func TestWatcher_SelfEventsIgnored(t *testing.T) {
	view := newFakeClusterView()
	watcher, dir := startTestWatcher(t, view, &fakeProber{result: true})

	view.events <- memberlist.NodeEvent{
		Event: memberlist.NodeJoin,
		Node:  storeNode(t, "self"),
	}

	select {
	case ev := <-watcher.Notifications():
		t.Fatalf("unexpected event: %T", ev)
	case <-time.After(50 * time.Millisecond):
	}

	require.Empty(t, dir.Peers())
}

func TestWatcher_UnknownEventDropped(t *testing.T) {
	view := newFakeClusterView()
	watcher, _ := startTestWatcher(t, view, &fakeProber{result: true})

	view.events <- memberlist.NodeEvent{
		Event: memberlist.NodeEventType(42),
		Node:  storeNode(t, "node1"),
	}

	// The loop must survive and keep processing.
	view.events <- memberlist.NodeEvent{
		Event: memberlist.NodeJoin,
		Node:  storeNode(t, "node2"),
	}

	ev := waitForEvent(t, watcher.Notifications())
	connected, ok := ev.(*PeerConnected)
	require.True(t, ok)
	require.Equal(t, "node2", connected.Name)
}

func TestWatcher_ReconcileRemovesVanishedPeers(t *testing.T) {
	view := newFakeClusterView()

	dirConf := DefaultDirectoryConfig()
	dirConf.Clock = clock.NewFake()
	dir := NewDirectory(&fakeProber{result: true}, dirConf)

	conf := DefaultWatcherConfig()
	watcher := NewWatcher(view, dir, conf)

	dir.RecordConnect("node1", "10.0.0.1:45892", "10.0.0.1:3000")
	dir.RecordConnect("node2", "10.0.0.2:45892", "10.0.0.2:3000")

	view.members = []Peer{{Name: "node2", Addr: "10.0.0.2:45892"}}

	watcher.reconcile()

	peers := dir.Peers()
	require.Len(t, peers, 1)
	require.Equal(t, "node2", peers[0].Name)
}
