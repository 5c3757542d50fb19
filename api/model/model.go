package model

import "time"

type Event struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Data     []byte    `json:"data"`
	Metadata []byte    `json:"metadata,omitempty"`
	Version  int64     `json:"version,omitempty"`
	Recorded time.Time `json:"recorded,omitempty"`
}

type AppendEventsRequest struct {
	Events []Event `json:"events"`

	// ExpectedVersion enables the optimistic-concurrency check. Absent
	// means append unconditionally.
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

type AppendEventsResponse struct {
	StreamVersion int64 `json:"stream_version"`
}

type GetEventsResponse struct {
	Events []Event `json:"events"`
}

type StreamVersionResponse struct {
	Stream  string `json:"stream"`
	Version int64  `json:"version"`
}

type ListStreamsResponse struct {
	Streams []string `json:"streams"`
}

type ListStoresResponse struct {
	Stores []string `json:"stores"`
}

type SaveSubscriptionRequest struct {
	Selector struct {
		Kind  string `json:"kind"`
		Value string `json:"value"`
	} `json:"selector"`
}

type AckEventRequest struct {
	EventID string `json:"event_id"`
}

type Snapshot struct {
	Source    string    `json:"source"`
	Version   int64     `json:"version"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type RecordSnapshotRequest struct {
	Version int64  `json:"version"`
	Data    []byte `json:"data"`
}

type ListSnapshotsResponse struct {
	Snapshots []Snapshot `json:"snapshots"`
}

type Peer struct {
	Name           string `json:"name"`
	Addr           string `json:"addr"`
	ServerAddr     string `json:"server_addr,omitempty"`
	Classification string `json:"classification"`
	Reachable      bool   `json:"reachable"`
}

type ClusterPeersResponse struct {
	Peers []Peer `json:"peers"`
}

type StatusResponse struct {
	InstanceID   string `json:"instance_id"`
	Registration string `json:"registration"`
	Workers      int    `json:"workers"`
	Stores       int    `json:"stores"`
}

type Error struct {
	Error  string `json:"error"`
	Actual *int64 `json:"actual,omitempty"`
}
