package grpcclient

import (
	"context"

	"eventgate/workerapi"
)

// Prober performs the capability probe against a peer's node endpoint: it
// dials the peer, asks for its service list, and checks for the worker
// service. Connections are short-lived since probes are rare (TTL-cached by
// the membership directory).
type Prober struct {
	dial workerapi.Dialer
}

func NewProber() *Prober {
	return &Prober{dial: Dial}
}

// HostsWorkers reports whether the node at addr runs the event-store worker
// service.
func (p *Prober) HostsWorkers(ctx context.Context, addr string) (bool, error) {
	conn, err := p.dial(ctx, addr)
	if err != nil {
		return false, err
	}

	defer func() {
		_ = conn.Close()
	}()

	services, err := conn.Services(ctx)
	if err != nil {
		return false, err
	}

	for _, name := range services {
		if name == workerapi.WorkerServiceName {
			return true, nil
		}
	}

	return false, nil
}
