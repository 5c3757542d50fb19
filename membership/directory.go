package membership

import (
	"context"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"eventgate/internal/clock"
)

// Prober answers whether the node at the given server address runs the
// event-store worker service.
type Prober interface {
	HostsWorkers(ctx context.Context, addr string) (bool, error)
}

type DirectoryConfig struct {
	// ClassificationTTL is how long a probed classification is trusted.
	// Older entries are treated as unknown and re-verified lazily.
	ClassificationTTL time.Duration

	// ProbeTimeout bounds a single capability probe.
	ProbeTimeout time.Duration

	Clock  clock.Clock
	Logger kitlog.Logger
}

func DefaultDirectoryConfig() DirectoryConfig {
	return DirectoryConfig{
		ClassificationTTL: 5 * time.Minute,
		ProbeTimeout:      2 * time.Second,
		Clock:             clock.System(),
		Logger:            kitlog.NewNopLogger(),
	}
}

type peerEntry struct {
	addr         string
	serverAddr   string
	reachable    bool
	class        Classification
	classifiedAt time.Time
}

// Directory is the single source of truth for which peers exist, whether
// they are reachable, and the TTL-cached store-host classification. The
// Watcher is the only writer; everyone else reads.
type Directory struct {
	mut    sync.RWMutex
	peers  map[string]*peerEntry
	prober Prober
	ttl    time.Duration
	probeT time.Duration
	clock  clock.Clock
	logger kitlog.Logger
}

func NewDirectory(prober Prober, conf DirectoryConfig) *Directory {
	return &Directory{
		peers:  make(map[string]*peerEntry),
		prober: prober,
		ttl:    conf.ClassificationTTL,
		probeT: conf.ProbeTimeout,
		clock:  conf.Clock,
		logger: conf.Logger,
	}
}

// RecordConnect inserts or updates a peer as reachable. A previously cached
// classification survives a reconnect only if the peer never went through
// RecordDisconnect in between.
func (d *Directory) RecordConnect(name, addr, serverAddr string) {
	d.mut.Lock()
	defer d.mut.Unlock()

	entry, ok := d.peers[name]
	if !ok {
		entry = &peerEntry{class: ClassUnknown}
		d.peers[name] = entry
	}

	entry.addr = addr
	entry.serverAddr = serverAddr
	entry.reachable = true
}

// RecordDisconnect marks a peer unreachable and evicts its cached
// classification, so a reconnect always re-verifies.
func (d *Directory) RecordDisconnect(name string) {
	d.mut.Lock()
	defer d.mut.Unlock()

	entry, ok := d.peers[name]
	if !ok {
		return
	}

	entry.reachable = false
	entry.class = ClassUnknown
	entry.classifiedAt = time.Time{}
}

// Remove drops a peer entirely. Used by the reconciliation pass for peers
// that no longer appear in the authoritative member list.
func (d *Directory) Remove(name string) {
	d.mut.Lock()
	defer d.mut.Unlock()

	delete(d.peers, name)
}

// Classify returns the peer's classification, probing the peer if no valid
// cache entry exists. Probe failures fail open: the peer is reported as a
// plain peer and the negative result is not cached, so transient failures
// are retried on the next call.
func (d *Directory) Classify(ctx context.Context, name string) Classification {
	d.mut.RLock()
	entry, ok := d.peers[name]

	var (
		serverAddr   string
		class        Classification
		classifiedAt time.Time
	)

	if ok {
		serverAddr = entry.serverAddr
		class = entry.class
		classifiedAt = entry.classifiedAt
	}
	d.mut.RUnlock()

	if !ok || serverAddr == "" {
		return ClassPlainPeer
	}

	if class != ClassUnknown && d.clock.Now().Sub(classifiedAt) < d.ttl {
		return class
	}

	ctx, cancel := context.WithTimeout(ctx, d.probeT)
	defer cancel()

	hostsWorkers, err := d.prober.HostsWorkers(ctx, serverAddr)
	if err != nil {
		level.Debug(d.logger).Log(
			"msg", "classification probe failed",
			"peer", name,
			"err", err,
		)

		return ClassPlainPeer
	}

	class = ClassPlainPeer
	if hostsWorkers {
		class = ClassStoreHost
	}

	d.mut.Lock()
	defer d.mut.Unlock()

	// The peer may have disconnected while the probe was in flight. Caching
	// the result would resurrect a classification the disconnect evicted.
	if entry, ok := d.peers[name]; ok && entry.reachable {
		entry.class = class
		entry.classifiedAt = d.clock.Now()
	}

	return class
}

// Classification returns the currently cached classification without
// probing. Expired entries read as unknown.
func (d *Directory) Classification(name string) Classification {
	d.mut.RLock()
	defer d.mut.RUnlock()

	entry, ok := d.peers[name]
	if !ok {
		return ClassUnknown
	}

	if entry.class != ClassUnknown && d.clock.Now().Sub(entry.classifiedAt) >= d.ttl {
		return ClassUnknown
	}

	return entry.class
}

// Peers returns a snapshot of all known peers.
func (d *Directory) Peers() []PeerInfo {
	d.mut.RLock()
	defer d.mut.RUnlock()

	infos := make([]PeerInfo, 0, len(d.peers))
	for name, entry := range d.peers {
		infos = append(infos, PeerInfo{
			Name:           name,
			Addr:           entry.addr,
			ServerAddr:     entry.serverAddr,
			Classification: entry.class,
			ClassifiedAt:   entry.classifiedAt,
			Reachable:      entry.reachable,
		})
	}

	return infos
}
