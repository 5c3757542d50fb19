package workerapi

import "time"

// AnyVersion disables the optimistic-concurrency check on append.
const AnyVersion int64 = -1

// Event is a single event as stored in (or destined for) an event stream.
type Event struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Data     []byte    `json:"data"`
	Metadata []byte    `json:"metadata,omitempty"`
	Version  int64     `json:"version"`
	Recorded time.Time `json:"recorded"`
}

// Direction is the read direction of a stream query.
type Direction uint8

const (
	Forward Direction = iota + 1
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return ""
	}
}

// SelectorKind determines how a subscription matches events.
type SelectorKind uint8

const (
	ByStream SelectorKind = iota + 1
	ByEventType
	ByPattern
	ByPayload
)

func (k SelectorKind) String() string {
	switch k {
	case ByStream:
		return "stream"
	case ByEventType:
		return "event_type"
	case ByPattern:
		return "pattern"
	case ByPayload:
		return "payload"
	default:
		return ""
	}
}

// Selector describes which events a subscription receives. Value is
// interpreted according to Kind: a stream name, an event type, a stream
// name pattern, or a payload match expression.
type Selector struct {
	Kind  SelectorKind `json:"kind"`
	Value string       `json:"value"`
}

// Subscription is a named, durable event subscription on a worker.
type Subscription struct {
	ID       string   `json:"id"`
	Selector Selector `json:"selector"`
}

// Snapshot is a point-in-time state record for a snapshot source.
type Snapshot struct {
	Source    string    `json:"source"`
	Version   int64     `json:"version"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}
