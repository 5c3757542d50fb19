package membership

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/memberlist"
)

const (
	leaveTimeout      = 5 * time.Second
	metaUpdateTimeout = 10 * time.Second
)

// Cluster wraps the gossip layer. It owns the memberlist instance, exposes
// the raw node-event stream consumed by the Watcher, and lets the local node
// publish its registry metadata.
type Cluster struct {
	mut    sync.RWMutex
	ml     *memberlist.Memberlist
	meta   []byte
	events chan memberlist.NodeEvent
	logger kitlog.Logger
}

// Create starts the gossip listener. The node does not know about any peers
// until Join is called with a seed address.
func Create(conf Config) (*Cluster, error) {
	host, portStr, err := net.SplitHostPort(conf.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("parse bind addr: %w", err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("parse bind port: %w", err)
	}

	cl := &Cluster{
		events: make(chan memberlist.NodeEvent, conf.EventBufferSize),
		logger: conf.Logger,
	}

	mlConf := memberlist.DefaultLANConfig()
	mlConf.Name = conf.NodeName
	mlConf.BindAddr = host
	mlConf.BindPort = port
	mlConf.SecretKey = conf.SecretKey
	mlConf.Events = &memberlist.ChannelEventDelegate{Ch: cl.events}
	mlConf.Delegate = &metaDelegate{cluster: cl}
	mlConf.LogOutput = &logWriter{logger: conf.Logger}

	if conf.AdvertiseAddr != "" {
		advHost, advPortStr, err := net.SplitHostPort(conf.AdvertiseAddr)
		if err != nil {
			return nil, fmt.Errorf("parse advertise addr: %w", err)
		}

		advPort, err := strconv.Atoi(advPortStr)
		if err != nil {
			return nil, fmt.Errorf("parse advertise port: %w", err)
		}

		mlConf.AdvertiseAddr = advHost
		mlConf.AdvertisePort = advPort
	}

	if conf.PushPullInterval > 0 {
		mlConf.PushPullInterval = conf.PushPullInterval
	}

	ml, err := memberlist.Create(mlConf)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}

	cl.ml = ml

	return cl, nil
}

// Join connects to the cluster through the given seed address. Safe to call
// repeatedly with different seeds.
func (cl *Cluster) Join(ctx context.Context, addr string) error {
	done := make(chan error, 1)

	go func() {
		_, err := cl.ml.Join([]string{addr})
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("join %s: %w", addr, err)
		}

		return nil
	}
}

// Events returns the raw node-event stream. Events for the same peer are
// delivered in receipt order. There is exactly one consumer: the Watcher.
func (cl *Cluster) Events() <-chan memberlist.NodeEvent {
	return cl.events
}

// Members returns all currently alive cluster members, including self.
func (cl *Cluster) Members() []Peer {
	nodes := cl.ml.Members()

	peers := make([]Peer, 0, len(nodes))
	for _, node := range nodes {
		peers = append(peers, Peer{
			Name: node.Name,
			Addr: node.Address(),
			Meta: node.Meta,
		})
	}

	return peers
}

// SelfName returns this node's gossip identity.
func (cl *Cluster) SelfName() string {
	return cl.ml.LocalNode().Name
}

// SelfAddr returns this node's advertised gossip address.
func (cl *Cluster) SelfAddr() string {
	return cl.ml.LocalNode().Address()
}

// SetLocalMeta publishes new metadata for the local node and broadcasts the
// change to the cluster.
func (cl *Cluster) SetLocalMeta(meta []byte) error {
	cl.mut.Lock()
	cl.meta = meta
	cl.mut.Unlock()

	if err := cl.ml.UpdateNode(metaUpdateTimeout); err != nil {
		return fmt.Errorf("update node meta: %w", err)
	}

	return nil
}

// LocalMeta returns the metadata currently published for the local node.
func (cl *Cluster) LocalMeta() []byte {
	cl.mut.RLock()
	defer cl.mut.RUnlock()

	return cl.meta
}

// Leave announces departure and shuts the gossip layer down.
func (cl *Cluster) Leave(ctx context.Context) error {
	if err := cl.ml.Leave(leaveTimeout); err != nil {
		level.Warn(cl.logger).Log("msg", "gossip leave failed", "err", err)
	}

	if err := cl.ml.Shutdown(); err != nil {
		return fmt.Errorf("shutdown memberlist: %w", err)
	}

	return nil
}

// metaDelegate feeds the local metadata into memberlist state exchanges.
type metaDelegate struct {
	cluster *Cluster
}

func (d *metaDelegate) NodeMeta(limit int) []byte {
	meta := d.cluster.LocalMeta()
	if len(meta) > limit {
		level.Warn(d.cluster.logger).Log(
			"msg", "node meta exceeds gossip limit, truncating",
			"size", len(meta),
			"limit", limit,
		)

		meta = meta[:limit]
	}

	return meta
}

func (d *metaDelegate) NotifyMsg([]byte)                           {}
func (d *metaDelegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (d *metaDelegate) LocalState(join bool) []byte                { return nil }
func (d *metaDelegate) MergeRemoteState(buf []byte, join bool)     {}

// logWriter funnels memberlist's internal log lines into go-kit at debug
// level, since memberlist only speaks io.Writer.
type logWriter struct {
	logger kitlog.Logger
}

func (w *logWriter) Write(p []byte) (int, error) {
	level.Debug(w.logger).Log("msg", "memberlist", "line", string(p))
	return len(p), nil
}
