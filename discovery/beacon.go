package discovery

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	announceMagic     = "evg1"
	maxPayloadSize    = 1500 // implied by MTU
	receiveBufferSize = 1 * 1024 * 1024
	readErrorBackoff  = 200 * time.Millisecond
	maxReadErrors     = 10
)

// announcement is the beacon payload. The token authenticates the sender's
// shared secret without carrying key material on the wire.
type announcement struct {
	Magic string `json:"magic"`
	Token string `json:"token"`
	Addr  string `json:"addr"`
}

// Beacon announces this node's gossip address to the multicast group and
// collects announcements from peers. Discovered peer addresses come out of
// Seeds, deduplicated by the consumer.
type Beacon struct {
	group    *net.UDPAddr
	listener *net.UDPConn
	sender   *net.UDPConn
	token    string
	selfAddr string
	interval time.Duration
	seeds    chan string
	stop     chan struct{}
	wg       sync.WaitGroup
	logger   kitlog.Logger
}

func NewBeacon(conf Config, selfAddr string, logger kitlog.Logger) *Beacon {
	return &Beacon{
		token:    conf.token(),
		selfAddr: selfAddr,
		interval: conf.AnnounceInterval,
		seeds:    make(chan string, 16),
		stop:     make(chan struct{}),
		logger:   logger,
	}
}

// Start opens the multicast sockets and launches the announce and receive
// loops.
func (b *Beacon) Start(conf Config) error {
	group, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", conf.MulticastAddr, conf.Port))
	if err != nil {
		return fmt.Errorf("resolve multicast group: %w", err)
	}

	var iface *net.Interface

	if conf.BindIface != "" {
		iface, err = net.InterfaceByName(conf.BindIface)
		if err != nil {
			return fmt.Errorf("lookup interface %q: %w", conf.BindIface, err)
		}
	}

	listener, err := net.ListenMulticastUDP("udp4", iface, group)
	if err != nil {
		return fmt.Errorf("listen multicast: %w", err)
	}

	// Larger system buffer reduces announcement drops when the consumer
	// is busy joining.
	if err := listener.SetReadBuffer(receiveBufferSize); err != nil {
		level.Warn(b.logger).Log("msg", "failed to alter udp read buffer size", "err", err)
	}

	sender, err := net.DialUDP("udp4", nil, group)
	if err != nil {
		_ = listener.Close()
		return fmt.Errorf("open multicast sender: %w", err)
	}

	b.group = group
	b.listener = listener
	b.sender = sender

	b.wg.Add(2)
	go b.receiveLoop()
	go b.announceLoop()

	return nil
}

// Seeds returns discovered peer gossip addresses. Peers re-announce every
// AnnounceInterval, so a missed seed is retried naturally.
func (b *Beacon) Seeds() <-chan string {
	return b.seeds
}

// Stop terminates both loops and closes the sockets.
func (b *Beacon) Stop() {
	close(b.stop)
	_ = b.listener.Close()
	_ = b.sender.Close()
	b.wg.Wait()
}

func (b *Beacon) announceLoop() {
	defer b.wg.Done()

	payload, err := json.Marshal(announcement{
		Magic: announceMagic,
		Token: b.token,
		Addr:  b.selfAddr,
	})
	if err != nil {
		level.Error(b.logger).Log("msg", "failed to marshal announcement", "err", err)
		return
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		if _, err := b.sender.Write(payload); err != nil {
			select {
			case <-b.stop:
				return
			default:
				level.Debug(b.logger).Log("msg", "announcement send failed", "err", err)
			}
		}

		select {
		case <-ticker.C:
		case <-b.stop:
			return
		}
	}
}

func (b *Beacon) receiveLoop() {
	defer b.wg.Done()

	buf := make([]byte, maxPayloadSize)

	var readErrs int

	for {
		n, _, err := b.listener.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-b.stop:
				return
			default:
			}

			readErrs++
			if readErrs >= maxReadErrors {
				level.Error(b.logger).Log("msg", "beacon socket is broken, stopping the receive loop", "err", err)
				return
			}

			// Transient errors get a short pause instead of a hot loop.
			select {
			case <-b.stop:
				return
			case <-time.After(readErrorBackoff):
			}

			continue
		}

		readErrs = 0

		var ann announcement
		if err := json.Unmarshal(buf[:n], &ann); err != nil {
			// Not one of ours. The group address may be shared.
			continue
		}

		if ann.Magic != announceMagic || ann.Token != b.token || ann.Addr == b.selfAddr {
			continue
		}

		select {
		case b.seeds <- ann.Addr:
		default:
			// The consumer is behind; the peer will announce again.
		}
	}
}
