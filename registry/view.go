package registry

import (
	"context"
	"errors"
	"math/rand"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ErrNoWorkersAvailable is returned when a selection query matches no
// registered worker. Callers decide whether to retry: the view never does.
var ErrNoWorkersAvailable = errors.New("no workers available")

// Client is the read-through view over the distributed registry. It holds
// no cache: every query hits the directory, so worker-set changes are
// visible request-to-request.
type Client struct {
	dir Directory
}

func NewClient(dir Directory) *Client {
	return &Client{dir: dir}
}

// AllWorkers lists every registered worker handle.
func (c *Client) AllWorkers(ctx context.Context) ([]Handle, error) {
	return c.dir.Workers(ctx)
}

// WorkersFor lists the worker handles serving the given store.
func (c *Client) WorkersFor(ctx context.Context, storeID string) ([]Handle, error) {
	handles, err := c.dir.Workers(ctx)
	if err != nil {
		return nil, err
	}

	matched := handles[:0]

	for _, h := range handles {
		if h.Key.MatchesStore(storeID) {
			matched = append(matched, h)
		}
	}

	return matched, nil
}

// RandomWorker picks a worker uniformly at random from all registered
// workers.
func (c *Client) RandomWorker(ctx context.Context) (Handle, error) {
	handles, err := c.dir.Workers(ctx)
	if err != nil {
		return Handle{}, err
	}

	return pickRandom(handles)
}

// RandomWorkerFor picks a worker uniformly at random among those serving
// the given store.
func (c *Client) RandomWorkerFor(ctx context.Context, storeID string) (Handle, error) {
	handles, err := c.WorkersFor(ctx, storeID)
	if err != nil {
		return Handle{}, err
	}

	return pickRandom(handles)
}

// Stores returns the sorted set of store IDs that currently have at least
// one registered worker.
func (c *Client) Stores(ctx context.Context) ([]string, error) {
	handles, err := c.dir.Workers(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(handles))
	for _, h := range handles {
		if h.Key.IsWorker() {
			seen[h.Key.StoreID] = struct{}{}
		}
	}

	stores := maps.Keys(seen)
	slices.Sort(stores)

	return stores, nil
}

func pickRandom(handles []Handle) (Handle, error) {
	if len(handles) == 0 {
		return Handle{}, ErrNoWorkersAvailable
	}

	return handles[rand.Intn(len(handles))], nil
}
