package registration

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/twmb/murmur3"

	"eventgate/internal/clock"
	"eventgate/internal/retry"
	"eventgate/registry"
)

// State of the self-registration machine.
type State uint8

const (
	StateNotRegistered State = iota + 1
	StateRegistering
	StateRegistered
)

func (s State) String() string {
	switch s {
	case StateNotRegistered:
		return "not_registered"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	default:
		return ""
	}
}

type Config struct {
	// Directory is the distributed registry to register in.
	Directory registry.Directory

	// SelfAddr is this gateway's advertised administrative address.
	SelfAddr string

	// InstanceID overrides the generated instance identity. Mostly for
	// tests.
	InstanceID string

	// InitialDelay postpones the first attempt so the membership watcher
	// and discovery bootstrap settle before we write to the registry.
	InitialDelay time.Duration

	// RetryInterval is the fixed backoff between failed attempts. Retries
	// continue indefinitely: registration only affects observability, so
	// giving up buys nothing.
	RetryInterval time.Duration

	Clock  clock.Clock
	Logger kitlog.Logger
}

func DefaultConfig() Config {
	return Config{
		InitialDelay:  2 * time.Second,
		RetryInterval: 5 * time.Second,
		Clock:         clock.System(),
		Logger:        kitlog.NewNopLogger(),
	}
}

// Registrar registers this gateway instance in the distributed registry
// under a collision-resistant name. The registry's own failure detection
// removes the entry when the process dies; the registrar never has to.
type Registrar struct {
	mut        sync.Mutex
	dir        registry.Directory
	addr       string
	instanceID string
	state      State
	delay      time.Duration
	retryEvery time.Duration
	clock      clock.Clock
	logger     kitlog.Logger
}

func New(conf Config) *Registrar {
	id := conf.InstanceID
	if id == "" {
		id = NewInstanceID()
	}

	return &Registrar{
		dir:        conf.Directory,
		addr:       conf.SelfAddr,
		instanceID: id,
		state:      StateNotRegistered,
		delay:      conf.InitialDelay,
		retryEvery: conf.RetryInterval,
		clock:      conf.Clock,
		logger:     conf.Logger,
	}
}

// State returns the current registration state.
func (r *Registrar) State() State {
	r.mut.Lock()
	defer r.mut.Unlock()

	return r.state
}

// InstanceID returns the identity this instance registers under. It may
// change if a registration attempt hits a name collision.
func (r *Registrar) InstanceID() string {
	r.mut.Lock()
	defer r.mut.Unlock()

	return r.instanceID
}

// Run performs the delayed registration with indefinite fixed-backoff
// retries. It returns once registered or when the context is canceled.
func (r *Registrar) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.clock.After(r.delay):
	}

	err := retry.Do(ctx, r.clock, retry.Fixed(r.retryEvery), func(ctx context.Context) error {
		if err := r.Register(ctx); err != nil {
			level.Warn(r.logger).Log(
				"msg", "gateway registration failed, will retry",
				"instance_id", r.InstanceID(),
				"retry_in", r.retryEvery,
				"err", err,
			)

			return err
		}

		level.Info(r.logger).Log(
			"msg", "gateway registered",
			"instance_id", r.InstanceID(),
		)

		return nil
	})

	// When the context dies mid-backoff, retry.Do hands back the last
	// attempt's error. The caller cares that we were canceled, not what
	// the final attempt happened to fail with.
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	return err
}

// Register attempts a single registration. It is idempotent and race-safe:
// while an attempt is in flight, or once registered, concurrent callers
// no-op successfully instead of producing duplicate entries.
func (r *Registrar) Register(ctx context.Context) error {
	r.mut.Lock()

	if r.state != StateNotRegistered {
		r.mut.Unlock()
		return nil
	}

	r.state = StateRegistering
	gw := registry.Gateway{
		InstanceID:   r.instanceID,
		Addr:         r.addr,
		RegisteredAt: r.clock.Now(),
	}

	r.mut.Unlock()

	err := r.dir.RegisterGateway(ctx, gw)

	r.mut.Lock()
	defer r.mut.Unlock()

	if err != nil {
		r.state = StateNotRegistered

		// A taken name means our id collided with a live instance. The
		// same id would keep colliding, so mint a fresh one for the next
		// attempt.
		if errors.Is(err, registry.ErrNameTaken) {
			r.instanceID = NewInstanceID()
		}

		return err
	}

	r.state = StateRegistered

	return nil
}

// Unregister removes this instance's registry entry.
func (r *Registrar) Unregister(ctx context.Context) error {
	r.mut.Lock()
	id := r.instanceID
	r.mut.Unlock()

	if err := r.dir.UnregisterGateway(ctx, id); err != nil {
		return err
	}

	r.mut.Lock()
	r.state = StateNotRegistered
	r.mut.Unlock()

	return nil
}

// NewInstanceID produces a collision-resistant gateway identity.
func NewInstanceID() string {
	host, _ := os.Hostname()

	seed := fmt.Sprintf("%s|%d|%d|%d", host, os.Getpid(), time.Now().UnixNano(), rand.Uint64())

	return fmt.Sprintf("gw-%016x", murmur3.StringSum64(seed))
}
