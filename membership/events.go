package membership

var (
	_ Event = &PeerConnected{}
	_ Event = &PeerDisconnected{}
	_ Event = &StorePeerJoined{}
	_ Event = &StorePeerLeft{}
)

// Event is a membership-change notification emitted by the Watcher. Events
// are telemetry: routing correctness never depends on observing them, since
// the worker registry is queried independently per dispatch.
type Event interface {
	isMembershipEvent()
}

type PeerConnected struct {
	Name string
	Addr string
}

func (*PeerConnected) isMembershipEvent() {}

type PeerDisconnected struct {
	Name string
}

func (*PeerDisconnected) isMembershipEvent() {}

// StorePeerJoined is emitted once a newly connected peer is positively
// classified as a store host.
type StorePeerJoined struct {
	Name string
	Addr string
}

func (*StorePeerJoined) isMembershipEvent() {}

// StorePeerLeft is emitted when a peer that had been classified as a store
// host disconnects.
type StorePeerLeft struct {
	Name string
}

func (*StorePeerLeft) isMembershipEvent() {}
