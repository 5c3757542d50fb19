package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/twmb/murmur3"
)

// Kind discriminates registry entries.
type Kind uint8

const (
	// KindWorker is an event-store worker process serving one store.
	KindWorker Kind = iota + 1

	// KindGateway is a gateway instance registered for administrative
	// visibility. Gateways never serve dispatch traffic.
	KindGateway
)

func (k Kind) String() string {
	switch k {
	case KindWorker:
		return "worker"
	case KindGateway:
		return "gateway"
	default:
		return ""
	}
}

// Key identifies a single registry entry. It replaces the loosely-typed
// name tuples workers register under with an explicit composite key.
type Key struct {
	Kind    Kind
	StoreID string
	Node    string
	Port    uint16
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s@%s:%d", k.Kind, k.StoreID, k.Node, k.Port)
}

// ParseKey parses the "kind/store@node:port" form produced by String.
func ParseKey(s string) (Key, error) {
	kindStr, rest, ok := strings.Cut(s, "/")
	if !ok {
		return Key{}, fmt.Errorf("malformed registry key: %q", s)
	}

	var kind Kind

	switch kindStr {
	case "worker":
		kind = KindWorker
	case "gateway":
		kind = KindGateway
	default:
		return Key{}, fmt.Errorf("unknown registry key kind: %q", kindStr)
	}

	store, addr, ok := strings.Cut(rest, "@")
	if !ok {
		return Key{}, fmt.Errorf("malformed registry key: %q", s)
	}

	node, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		return Key{}, fmt.Errorf("malformed registry key: %q", s)
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Key{}, fmt.Errorf("bad port in registry key %q: %w", s, err)
	}

	return Key{
		Kind:    kind,
		StoreID: store,
		Node:    node,
		Port:    uint16(port),
	}, nil
}

// Hash64 returns a stable 64-bit hash of the key.
func (k Key) Hash64() uint64 {
	return murmur3.StringSum64(k.String())
}

// IsWorker reports whether the key identifies a worker entry.
func (k Key) IsWorker() bool {
	return k.Kind == KindWorker
}

// MatchesStore reports whether the key is a worker entry for the given store.
func (k Key) MatchesStore(storeID string) bool {
	return k.Kind == KindWorker && k.StoreID == storeID
}
