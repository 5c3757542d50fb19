package membership

import (
	"context"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/memberlist"
	"golang.org/x/sync/errgroup"
)

// ClusterView is the part of the gossip cluster the Watcher consumes.
type ClusterView interface {
	Events() <-chan memberlist.NodeEvent
	Members() []Peer
	SelfName() string
}

type WatcherConfig struct {
	// ReconcileInterval is how often the directory is re-derived from the
	// authoritative member list. This is the recovery path for any state
	// the event stream got wrong: no watcher error requires a restart to
	// converge.
	ReconcileInterval time.Duration

	// NotifyBufferSize is the capacity of the notification channel. When
	// nobody drains it, further notifications are dropped, not blocked on.
	NotifyBufferSize int

	// ProbeConcurrency caps concurrent classification probes during a
	// reconciliation pass.
	ProbeConcurrency int

	Logger kitlog.Logger
}

func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		ReconcileInterval: time.Minute,
		NotifyBufferSize:  64,
		ProbeConcurrency:  4,
		Logger:            kitlog.NewNopLogger(),
	}
}

// Watcher subscribes to low-level node up/down signals, keeps the Directory
// current, and emits membership-change notifications. Events for the same
// peer are processed in receipt order; classification probes run off the
// event loop so they can never stall it.
type Watcher struct {
	cluster        ClusterView
	dir            *Directory
	notify         chan Event
	stop           chan struct{}
	wg             sync.WaitGroup
	reconcileEvery time.Duration
	probeLimit     int
	logger         kitlog.Logger
}

func NewWatcher(cluster ClusterView, dir *Directory, conf WatcherConfig) *Watcher {
	return &Watcher{
		cluster:        cluster,
		dir:            dir,
		notify:         make(chan Event, conf.NotifyBufferSize),
		stop:           make(chan struct{}),
		reconcileEvery: conf.ReconcileInterval,
		probeLimit:     conf.ProbeConcurrency,
		logger:         conf.Logger,
	}
}

// Start launches the event loop.
func (w *Watcher) Start() {
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		w.run()
	}()
}

// Stop terminates the event loop and waits for in-flight probes.
func (w *Watcher) Stop() {
	close(w.stop)
	w.wg.Wait()
}

// Notifications returns the membership-change event stream.
func (w *Watcher) Notifications() <-chan Event {
	return w.notify
}

func (w *Watcher) run() {
	ticker := time.NewTicker(w.reconcileEvery)
	defer ticker.Stop()

	for {
		select {
		case ev := <-w.cluster.Events():
			w.handleNodeEvent(ev)
		case <-ticker.C:
			w.reconcile()
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) handleNodeEvent(ev memberlist.NodeEvent) {
	if ev.Node == nil {
		level.Warn(w.logger).Log("msg", "node event without a node, dropped")
		return
	}

	if ev.Node.Name == w.cluster.SelfName() {
		return
	}

	switch ev.Event {
	case memberlist.NodeJoin:
		w.handleJoin(ev.Node)
	case memberlist.NodeLeave:
		w.handleLeave(ev.Node)
	case memberlist.NodeUpdate:
		w.handleUpdate(ev.Node)
	default:
		// Unrecognized event shapes must never take the watcher down.
		level.Warn(w.logger).Log(
			"msg", "unrecognized node event, dropped",
			"event", int(ev.Event),
			"node", ev.Node.Name,
		)
	}
}

func (w *Watcher) handleJoin(node *memberlist.Node) {
	name := node.Name
	addr := node.Address()

	w.dir.RecordConnect(name, addr, serverAddrFromMeta(node.Meta))

	level.Debug(w.logger).Log("msg", "peer connected", "peer", name, "addr", addr)
	w.emit(&PeerConnected{Name: name, Addr: addr})

	// Classification happens off the event loop: the probe is bounded by
	// the directory's probe timeout, but even that must not delay up/down
	// processing.
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()

		if class := w.dir.Classify(context.Background(), name); class == ClassStoreHost {
			level.Info(w.logger).Log("msg", "store peer joined", "peer", name, "addr", addr)
			w.emit(&StorePeerJoined{Name: name, Addr: addr})
		}
	}()
}

func (w *Watcher) handleLeave(node *memberlist.Node) {
	name := node.Name
	wasStoreHost := w.dir.Classification(name) == ClassStoreHost

	w.dir.RecordDisconnect(name)

	level.Debug(w.logger).Log("msg", "peer disconnected", "peer", name)
	w.emit(&PeerDisconnected{Name: name})

	if wasStoreHost {
		level.Info(w.logger).Log("msg", "store peer left", "peer", name)
		w.emit(&StorePeerLeft{Name: name})
	}
}

func (w *Watcher) handleUpdate(node *memberlist.Node) {
	// A metadata update keeps the cached classification: only a disconnect
	// evicts it.
	w.dir.RecordConnect(node.Name, node.Address(), serverAddrFromMeta(node.Meta))
}

// reconcile re-derives the directory from the authoritative member list and
// lazily refreshes expired classifications.
func (w *Watcher) reconcile() {
	members := w.cluster.Members()

	present := make(map[string]Peer, len(members))

	for _, peer := range members {
		if peer.Name == w.cluster.SelfName() {
			continue
		}

		present[peer.Name] = peer
		w.dir.RecordConnect(peer.Name, peer.Addr, serverAddrFromMeta(peer.Meta))
	}

	for _, info := range w.dir.Peers() {
		if _, ok := present[info.Name]; !ok {
			w.dir.Remove(info.Name)
		}
	}

	g := errgroup.Group{}
	g.SetLimit(w.probeLimit)

	for name := range present {
		if w.dir.Classification(name) != ClassUnknown {
			continue
		}

		name := name

		g.Go(func() error {
			w.dir.Classify(context.Background(), name)
			return nil
		})
	}

	_ = g.Wait()
}

func (w *Watcher) emit(ev Event) {
	select {
	case w.notify <- ev:
	default:
		level.Debug(w.logger).Log("msg", "notification buffer full, event dropped")
	}
}

func serverAddrFromMeta(meta []byte) string {
	decoded, err := DecodeMeta(meta)
	if err != nil {
		return ""
	}

	return decoded.ServerAddr
}
