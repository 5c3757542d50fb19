package discovery

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"eventgate/internal/clock"
	"eventgate/internal/retry"
)

// JoinCluster is the part of the gossip cluster the bootstrapper drives.
type JoinCluster interface {
	Join(ctx context.Context, addr string) error
	SelfAddr() string
}

const (
	joinTimeout   = 10 * time.Second
	rejoinBackoff = time.Minute
)

// Bootstrapper starts the shared discovery session at most once per host,
// no matter how many gateway instances race for it. Discovery failures are
// never fatal: the gateway keeps serving whatever workers are already
// reachable and picks up peers once a session eventually runs.
type Bootstrapper struct {
	conf    Config
	cluster JoinCluster
	clock   clock.Clock
	logger  kitlog.Logger

	mut    sync.Mutex
	lock   *SessionLock
	beacon *Beacon
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewBootstrapper(conf Config, cluster JoinCluster, cl clock.Clock, logger kitlog.Logger) *Bootstrapper {
	return &Bootstrapper{
		conf:    conf,
		cluster: cluster,
		clock:   cl,
		logger:  logger,
		stop:    make(chan struct{}),
	}
}

// MaybeStart starts the discovery session unless another process on this
// host already runs one. The holder check is time-boxed: if it cannot be
// answered within CheckTimeout, the bootstrapper logs a warning and stays
// passive rather than risking a second session.
func (b *Bootstrapper) MaybeStart(ctx context.Context) error {
	// A short random delay makes it unlikely that sibling instances hit
	// the lock at the same instant.
	if b.conf.JitterMax > 0 {
		jitter := time.Duration(rand.Int63n(int64(b.conf.JitterMax)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.clock.After(jitter):
		}
	}

	warnings, err := b.conf.Validate()
	if err != nil {
		return fmt.Errorf("discovery config: %w", err)
	}

	for _, warning := range warnings {
		level.Warn(b.logger).Log("msg", "discovery config warning", "warning", warning)
	}

	lockAddr := fmt.Sprintf("127.0.0.1:%d", b.conf.Port)

	lock, err := b.acquireLock(lockAddr)
	if err != nil {
		return err
	}

	if lock == nil {
		// Another instance owns the session on this host.
		return nil
	}

	beacon := NewBeacon(b.conf, b.cluster.SelfAddr(), b.logger)

	if err := beacon.Start(b.conf); err != nil {
		lock.Release()
		return fmt.Errorf("start beacon: %w", err)
	}

	b.mut.Lock()
	b.lock = lock
	b.beacon = beacon
	b.mut.Unlock()

	b.wg.Add(1)

	go func() {
		defer b.wg.Done()
		b.joinLoop(beacon.Seeds())
	}()

	level.Info(b.logger).Log(
		"msg", "discovery session started",
		"group", b.conf.MulticastAddr,
		"port", b.conf.Port,
	)

	return nil
}

// Stop tears the session down if this instance owns it.
func (b *Bootstrapper) Stop() {
	close(b.stop)

	b.mut.Lock()
	lock, beacon := b.lock, b.beacon
	b.mut.Unlock()

	if beacon != nil {
		beacon.Stop()
	}

	if lock != nil {
		lock.Release()
	}

	b.wg.Wait()
}

// acquireLock tries to take the per-host session lock. A nil lock with a
// nil error means another live holder was found (or assumed on a timed-out
// check) and this instance should stay passive.
func (b *Bootstrapper) acquireLock(lockAddr string) (*SessionLock, error) {
	lock, err := AcquireSessionLock(lockAddr)
	if err == nil {
		return lock, nil
	}

	checkErr := CheckSessionHolder(lockAddr, b.conf.CheckTimeout)
	if checkErr == nil {
		level.Debug(b.logger).Log("msg", "discovery session already running on this host")
		return nil, nil
	}

	if isTimeoutErr(checkErr) {
		level.Warn(b.logger).Log(
			"msg", "discovery session holder did not answer in time, not starting a second session",
			"err", checkErr,
		)

		return nil, nil
	}

	// The previous holder is gone but the release may not have propagated
	// yet. One more attempt before giving up.
	if lock, err = AcquireSessionLock(lockAddr); err != nil {
		level.Warn(b.logger).Log(
			"msg", "could not acquire discovery session lock, relying on another starter",
			"err", err,
		)

		return nil, nil
	}

	return lock, nil
}

// joinLoop feeds discovered seeds into the gossip cluster. Join failures
// back off per seed; peers keep re-announcing, so nothing is lost by
// giving up on an attempt.
func (b *Bootstrapper) joinLoop(seeds <-chan string) {
	lastJoined := make(map[string]time.Time)

	for {
		select {
		case <-b.stop:
			return
		case addr, ok := <-seeds:
			if !ok {
				return
			}

			if last, ok := lastJoined[addr]; ok && b.clock.Now().Sub(last) < rejoinBackoff {
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)

			policy := retry.Policy{
				BaseInterval: time.Second,
				MaxInterval:  5 * time.Second,
				Multiplier:   2,
				MaxAttempts:  3,
			}

			err := retry.Do(ctx, b.clock, policy, func(ctx context.Context) error {
				return b.cluster.Join(ctx, addr)
			})

			cancel()

			if err != nil {
				level.Warn(b.logger).Log("msg", "failed to join discovered peer", "addr", addr, "err", err)
				continue
			}

			lastJoined[addr] = b.clock.Now()
			level.Info(b.logger).Log("msg", "joined discovered peer", "addr", addr)
		}
	}
}
