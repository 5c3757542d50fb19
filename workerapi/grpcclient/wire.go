package grpcclient

import "eventgate/workerapi"

// Wire frames for the worker service. Domain-level failures travel in the
// response envelope so that they survive the transport untouched; transport
// failures surface as gRPC status errors instead.

const (
	errKindWrongVersion         = "wrong_expected_version"
	errKindStreamNotFound       = "stream_not_found"
	errKindSnapshotNotFound     = "snapshot_not_found"
	errKindSubscriptionNotFound = "subscription_not_found"
)

type wireError struct {
	Kind     string `json:"kind"`
	Message  string `json:"message,omitempty"`
	Expected int64  `json:"expected,omitempty"`
	Actual   int64  `json:"actual,omitempty"`
}

// unwrap converts a wire error into its typed counterpart. Unrecognized
// kinds are preserved as opaque domain errors rather than dropped.
func (e *wireError) unwrap() error {
	if e == nil {
		return nil
	}

	switch e.Kind {
	case errKindWrongVersion:
		return &workerapi.WrongVersionError{
			Expected: e.Expected,
			Actual:   e.Actual,
		}
	case errKindStreamNotFound:
		return workerapi.ErrStreamNotFound
	case errKindSnapshotNotFound:
		return workerapi.ErrSnapshotNotFound
	case errKindSubscriptionNotFound:
		return workerapi.ErrSubscriptionNotFound
	default:
		return &workerapi.WorkerError{Kind: e.Kind, Message: e.Message}
	}
}

type emptyRequest struct{}

type statusResponse struct {
	Err *wireError `json:"error,omitempty"`
}

type appendEventsRequest struct {
	Stream          string            `json:"stream"`
	Events          []workerapi.Event `json:"events"`
	ExpectedVersion int64             `json:"expected_version"`
}

type appendEventsResponse struct {
	StreamVersion int64      `json:"stream_version"`
	Err           *wireError `json:"error,omitempty"`
}

type getEventsRequest struct {
	Stream      string `json:"stream"`
	FromVersion int64  `json:"from_version"`
	Count       int    `json:"count"`
	Backward    bool   `json:"backward"`
}

type getEventsResponse struct {
	Events []workerapi.Event `json:"events"`
	Err    *wireError        `json:"error,omitempty"`
}

type streamRequest struct {
	Stream string `json:"stream"`
}

type streamVersionResponse struct {
	Version int64      `json:"version"`
	Err     *wireError `json:"error,omitempty"`
}

type listStreamsResponse struct {
	Streams []string   `json:"streams"`
	Err     *wireError `json:"error,omitempty"`
}

type saveSubscriptionRequest struct {
	Subscription workerapi.Subscription `json:"subscription"`
}

type subscriptionRequest struct {
	ID string `json:"id"`
}

type ackEventRequest struct {
	SubscriptionID string `json:"subscription_id"`
	EventID        string `json:"event_id"`
}

type recordSnapshotRequest struct {
	Snapshot workerapi.Snapshot `json:"snapshot"`
}

type snapshotRequest struct {
	Source string `json:"source"`
}

type readSnapshotResponse struct {
	Snapshot workerapi.Snapshot `json:"snapshot"`
	Err      *wireError         `json:"error,omitempty"`
}

type listSnapshotsResponse struct {
	Snapshots []workerapi.Snapshot `json:"snapshots"`
	Err       *wireError           `json:"error,omitempty"`
}

type servicesResponse struct {
	Services []string   `json:"services"`
	Err      *wireError `json:"error,omitempty"`
}
