package registry

import (
	"context"
	"sync"
)

// InMemDirectory is a mutex-guarded Directory for tests and single-node
// setups without gossip.
type InMemDirectory struct {
	mut      sync.RWMutex
	workers  map[Key]Handle
	gateways map[string]Gateway
}

var _ Directory = (*InMemDirectory)(nil)

func NewInMemDirectory() *InMemDirectory {
	return &InMemDirectory{
		workers:  make(map[Key]Handle),
		gateways: make(map[string]Gateway),
	}
}

// AddWorker inserts or replaces a worker handle.
func (d *InMemDirectory) AddWorker(h Handle) {
	d.mut.Lock()
	defer d.mut.Unlock()

	d.workers[h.Key] = h
}

// RemoveWorker deletes a worker handle by key.
func (d *InMemDirectory) RemoveWorker(key Key) {
	d.mut.Lock()
	defer d.mut.Unlock()

	delete(d.workers, key)
}

// RemoveNode deletes every entry owned by the given node, mirroring what
// happens in the gossip directory when a peer disconnects.
func (d *InMemDirectory) RemoveNode(node string) {
	d.mut.Lock()
	defer d.mut.Unlock()

	for key := range d.workers {
		if key.Node == node {
			delete(d.workers, key)
		}
	}
}

func (d *InMemDirectory) Workers(ctx context.Context) ([]Handle, error) {
	d.mut.RLock()
	defer d.mut.RUnlock()

	handles := make([]Handle, 0, len(d.workers))
	for _, h := range d.workers {
		handles = append(handles, h)
	}

	return handles, nil
}

func (d *InMemDirectory) Gateways(ctx context.Context) ([]Gateway, error) {
	d.mut.RLock()
	defer d.mut.RUnlock()

	gateways := make([]Gateway, 0, len(d.gateways))
	for _, gw := range d.gateways {
		gateways = append(gateways, gw)
	}

	return gateways, nil
}

func (d *InMemDirectory) RegisterGateway(ctx context.Context, gw Gateway) error {
	d.mut.Lock()
	defer d.mut.Unlock()

	if existing, ok := d.gateways[gw.InstanceID]; ok {
		if existing.Addr != gw.Addr {
			return ErrNameTaken
		}

		return nil
	}

	d.gateways[gw.InstanceID] = gw

	return nil
}

func (d *InMemDirectory) UnregisterGateway(ctx context.Context, instanceID string) error {
	d.mut.Lock()
	defer d.mut.Unlock()

	delete(d.gateways, instanceID)

	return nil
}
