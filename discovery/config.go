package discovery

import (
	"crypto/sha256"
	"fmt"
	"net"
	"os"
	"time"
)

type Config struct {
	// Port is the UDP port the discovery beacon announces on and the
	// loopback TCP port used for the per-host session lock. It must differ
	// from the gossip port: memberlist owns both TCP and UDP on its port,
	// which would shadow the session lock and the beacon listener.
	Port int

	// GossipPort is the port the gossip layer binds on this host. Validate
	// rejects the config when it equals Port. Zero disables the check.
	GossipPort int

	// BindIface is the network interface the multicast listener binds to.
	// Empty means the system default.
	BindIface string

	// MulticastAddr is the group address announcements are sent to.
	MulticastAddr string

	// Secret authenticates announcements and keys gossip encryption.
	// Peers with a different secret ignore each other.
	Secret string

	// JitterMax is the random delay before the singleton check, reducing
	// the chance of two gateways racing to start the session.
	JitterMax time.Duration

	// CheckTimeout bounds the liveness check against an existing session
	// holder. On timeout the bootstrapper fails open: it assumes the
	// holder is fine and does not start a second session.
	CheckTimeout time.Duration

	// AnnounceInterval is how often the beacon re-announces this node.
	AnnounceInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Port:             45893,
		MulticastAddr:    "239.192.32.12",
		JitterMax:        100 * time.Millisecond,
		CheckTimeout:     5 * time.Second,
		AnnounceInterval: time.Second,
	}
}

// Validate returns a hard error for unusable settings and a list of
// warnings for risky but workable ones. Warnings never stop the boot.
func (c Config) Validate() ([]string, error) {
	var warnings []string

	if c.Port <= 0 || c.Port > 65535 {
		return nil, fmt.Errorf("invalid discovery port: %d", c.Port)
	}

	if c.GossipPort != 0 && c.Port == c.GossipPort {
		return nil, fmt.Errorf(
			"discovery port %d collides with the gossip port: memberlist holds both tcp and udp on it",
			c.Port,
		)
	}

	group := net.ParseIP(c.MulticastAddr)
	if group == nil {
		return nil, fmt.Errorf("invalid multicast address: %q", c.MulticastAddr)
	}

	if !group.IsMulticast() {
		warnings = append(warnings, fmt.Sprintf(
			"%s is not a multicast address; broadcast discovery floods every host on the segment",
			c.MulticastAddr,
		))
	}

	if c.BindIface == "" && runningInContainer() {
		warnings = append(warnings,
			"binding discovery to all interfaces inside a container; announcements may leak outside the pod network",
		)
	}

	if c.Secret == "" {
		warnings = append(warnings,
			"discovery secret is empty; any host on the network can join the cluster",
		)
	}

	return warnings, nil
}

// SecretKey derives the 32-byte gossip encryption key from the shared
// secret. Returns nil when no secret is configured (unencrypted gossip).
func (c Config) SecretKey() []byte {
	if c.Secret == "" {
		return nil
	}

	sum := sha256.Sum256([]byte(c.Secret))

	return sum[:]
}

// token derives the announcement authentication token. It is deliberately
// distinct from the gossip key so beacon payloads never carry key material.
func (c Config) token() string {
	sum := sha256.Sum256([]byte("beacon|" + c.Secret))

	return fmt.Sprintf("%x", sum[:8])
}

func runningInContainer() bool {
	for _, marker := range []string{"/.dockerenv", "/run/.containerenv"} {
		if _, err := os.Stat(marker); err == nil {
			return true
		}
	}

	return false
}
