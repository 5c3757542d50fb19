package membership

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MaxMetaSize is the memberlist node metadata limit. Registry entries for a
// node must fit into a single metadata blob.
const MaxMetaSize = 512

// Node kinds carried in gossip metadata.
const (
	NodeKindStore   = "store"
	NodeKindGateway = "gateway"
)

var errEmptyMeta = errors.New("empty node metadata")

// WorkerMeta announces one hosted worker. The worker endpoint is the owning
// node's host combined with this port.
type WorkerMeta struct {
	Store string `json:"store"`
	Port  uint16 `json:"port"`
}

// NodeMeta is the registry payload a node attaches to its gossip identity.
// Store nodes announce their workers; gateways announce their instance ID.
// Entries live exactly as long as the node is a live cluster member, which
// is what keeps the registry free of stale handles.
type NodeMeta struct {
	Kind         string       `json:"kind"`
	ServerAddr   string       `json:"server_addr,omitempty"`
	InstanceID   string       `json:"instance_id,omitempty"`
	RegisteredAt int64        `json:"registered_at,omitempty"`
	Workers      []WorkerMeta `json:"workers,omitempty"`
}

// EncodeMeta serializes node metadata, enforcing the gossip size limit.
func EncodeMeta(meta NodeMeta) ([]byte, error) {
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal node meta: %w", err)
	}

	if len(b) > MaxMetaSize {
		return nil, fmt.Errorf("node meta is %d bytes, limit is %d", len(b), MaxMetaSize)
	}

	return b, nil
}

// DecodeMeta parses node metadata. Nodes that do not participate in the
// registry (empty metadata) decode to an error the caller is expected to
// treat as "no entries".
func DecodeMeta(b []byte) (NodeMeta, error) {
	if len(b) == 0 {
		return NodeMeta{}, errEmptyMeta
	}

	var meta NodeMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		return NodeMeta{}, fmt.Errorf("unmarshal node meta: %w", err)
	}

	return meta, nil
}
