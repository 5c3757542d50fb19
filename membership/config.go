package membership

import (
	"time"

	kitlog "github.com/go-kit/log"
)

type Config struct {
	// NodeName is this node's unique gossip identity.
	NodeName string

	// BindAddr is the host:port the gossip listener binds to.
	BindAddr string

	// AdvertiseAddr is the host:port advertised to other nodes. Empty
	// means memberlist picks one from the bind interface.
	AdvertiseAddr string

	// SecretKey enables gossip encryption when non-empty. Must be 16, 24
	// or 32 bytes.
	SecretKey []byte

	// EventBufferSize is the capacity of the node-event channel. Events
	// beyond it block memberlist's notify path, so it should comfortably
	// exceed the expected cluster size.
	EventBufferSize int

	// PushPullInterval is how often full state syncs happen. Zero keeps
	// the memberlist default.
	PushPullInterval time.Duration

	Logger kitlog.Logger
}

func DefaultConfig() Config {
	return Config{
		BindAddr:        "0.0.0.0:45892",
		EventBufferSize: 128,
		Logger:          kitlog.NewNopLogger(),
	}
}
