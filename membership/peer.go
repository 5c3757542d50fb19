package membership

import "time"

// Classification is the cached determination of whether a peer hosts
// event-store workers. It is informational (logging, the peers API) and
// never gates routing: routing always goes through the worker registry.
type Classification uint8

const (
	// ClassUnknown means the peer has not been probed yet, or its cached
	// classification has expired.
	ClassUnknown Classification = iota + 1

	// ClassStoreHost means the peer runs the event-store worker service.
	ClassStoreHost

	// ClassPlainPeer means the peer does not host workers, or the last
	// probe could not tell (probes fail open).
	ClassPlainPeer
)

func (c Classification) String() string {
	switch c {
	case ClassUnknown:
		return "unknown"
	case ClassStoreHost:
		return "store_host"
	case ClassPlainPeer:
		return "plain_peer"
	default:
		return ""
	}
}

// Peer is a cluster member as seen by the gossip layer.
type Peer struct {
	Name string
	Addr string
	Meta []byte
}

// PeerInfo is a directory entry describing one known peer.
type PeerInfo struct {
	Name           string
	Addr           string
	ServerAddr     string
	Classification Classification
	ClassifiedAt   time.Time
	Reachable      bool
}
