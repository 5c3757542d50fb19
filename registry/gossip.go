package registry

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"eventgate/membership"
)

// Membership is the slice of the gossip cluster the directory reads from
// and registers through.
type Membership interface {
	Members() []membership.Peer
	SelfName() string
	LocalMeta() []byte
	SetLocalMeta(meta []byte) error
}

// GossipDirectory derives registry entries from live gossip member
// metadata. A handle exists exactly while its owning node is an alive
// cluster member, so stale handles are excluded from selection by
// construction rather than skipped after a failed call.
type GossipDirectory struct {
	cluster Membership
	logger  kitlog.Logger
}

var _ Directory = (*GossipDirectory)(nil)

func NewGossipDirectory(cluster Membership, logger kitlog.Logger) *GossipDirectory {
	return &GossipDirectory{
		cluster: cluster,
		logger:  logger,
	}
}

func (d *GossipDirectory) Workers(ctx context.Context) ([]Handle, error) {
	var handles []Handle

	for _, peer := range d.cluster.Members() {
		meta, err := membership.DecodeMeta(peer.Meta)
		if err != nil || meta.Kind != membership.NodeKindStore {
			continue
		}

		host, _, err := net.SplitHostPort(peer.Addr)
		if err != nil {
			level.Warn(d.logger).Log(
				"msg", "member with unparseable address, skipped",
				"peer", peer.Name,
				"addr", peer.Addr,
			)

			continue
		}

		for _, worker := range meta.Workers {
			handles = append(handles, Handle{
				Key: Key{
					Kind:    KindWorker,
					StoreID: worker.Store,
					Node:    peer.Name,
					Port:    worker.Port,
				},
				Endpoint:     net.JoinHostPort(host, strconv.Itoa(int(worker.Port))),
				RegisteredAt: time.Unix(meta.RegisteredAt, 0),
			})
		}
	}

	return handles, nil
}

func (d *GossipDirectory) Gateways(ctx context.Context) ([]Gateway, error) {
	var gateways []Gateway

	for _, peer := range d.cluster.Members() {
		meta, err := membership.DecodeMeta(peer.Meta)
		if err != nil || meta.Kind != membership.NodeKindGateway {
			continue
		}

		gateways = append(gateways, Gateway{
			InstanceID:   meta.InstanceID,
			Addr:         meta.ServerAddr,
			RegisteredAt: time.Unix(meta.RegisteredAt, 0),
		})
	}

	return gateways, nil
}

func (d *GossipDirectory) RegisterGateway(ctx context.Context, gw Gateway) error {
	// Already holding the name ourselves: registering again is a no-op.
	if meta, err := membership.DecodeMeta(d.cluster.LocalMeta()); err == nil {
		if meta.Kind == membership.NodeKindGateway && meta.InstanceID == gw.InstanceID {
			return nil
		}
	}

	self := d.cluster.SelfName()

	for _, peer := range d.cluster.Members() {
		if peer.Name == self {
			continue
		}

		meta, err := membership.DecodeMeta(peer.Meta)
		if err != nil || meta.Kind != membership.NodeKindGateway {
			continue
		}

		if meta.InstanceID == gw.InstanceID {
			return ErrNameTaken
		}
	}

	meta, err := membership.EncodeMeta(membership.NodeMeta{
		Kind:         membership.NodeKindGateway,
		ServerAddr:   gw.Addr,
		InstanceID:   gw.InstanceID,
		RegisteredAt: gw.RegisteredAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("encode gateway meta: %w", err)
	}

	if err := d.cluster.SetLocalMeta(meta); err != nil {
		return fmt.Errorf("publish gateway meta: %w", err)
	}

	return nil
}

func (d *GossipDirectory) UnregisterGateway(ctx context.Context, instanceID string) error {
	meta, err := membership.DecodeMeta(d.cluster.LocalMeta())
	if err != nil || meta.InstanceID != instanceID {
		return nil
	}

	if err := d.cluster.SetLocalMeta(nil); err != nil {
		return fmt.Errorf("clear gateway meta: %w", err)
	}

	return nil
}
