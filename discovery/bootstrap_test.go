package discovery

import (
	"context"
	"testing"

	kitlog "github.com/go-kit/log"
	"github.com/stretchr/testify/require"

	"eventgate/internal/clock"
)

type fakeJoinCluster struct{}

func (fakeJoinCluster) Join(ctx context.Context, addr string) error { return nil }

func (fakeJoinCluster) SelfAddr() string { return "10.0.0.1:45892" }

func TestBootstrapper_RefusesGossipPortCollision(t *testing.T) {
	conf := DefaultConfig()
	conf.Secret = "s3cret"
	conf.BindIface = "lo"
	conf.JitterMax = 0
	conf.GossipPort = conf.Port

	b := NewBootstrapper(conf, fakeJoinCluster{}, clock.NewFake(), kitlog.NewNopLogger())

	// A shared port would leave the session lock and the beacon unable to
	// bind. That is a configuration error, not something to fail open on.
	err := b.MaybeStart(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "gossip port")
}
