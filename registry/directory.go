package registry

import (
	"context"
	"errors"
	"time"
)

// ErrNameTaken is returned when a registration would collide with an entry
// owned by another instance.
var ErrNameTaken = errors.New("registry name already taken")

// Handle is a reference to a remote worker able to serve one store's
// operations. Handles are discovered, never created, by the gateway.
type Handle struct {
	Key          Key
	Endpoint     string
	RegisteredAt time.Time
}

// Gateway is a gateway instance's own registry entry.
type Gateway struct {
	InstanceID   string
	Addr         string
	RegisteredAt time.Time
}

// Directory is the distributed registry capability. The production
// implementation derives entries from gossip state; tests inject an
// in-memory one. Workers are read-only from the gateway's perspective:
// store nodes register them, the gateway only ever registers itself.
type Directory interface {
	// Workers lists every currently registered worker handle.
	Workers(ctx context.Context) ([]Handle, error)

	// Gateways lists every registered gateway instance.
	Gateways(ctx context.Context) ([]Gateway, error)

	// RegisterGateway registers this gateway instance. Registering the same
	// instance again is a no-op; a different instance holding the name
	// returns ErrNameTaken.
	RegisterGateway(ctx context.Context, gw Gateway) error

	// UnregisterGateway removes this instance's entry.
	UnregisterGateway(ctx context.Context, instanceID string) error
}
