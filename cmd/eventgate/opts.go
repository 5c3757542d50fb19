package main

import (
	"strings"
)

var opts struct {
	Node struct {
		Name string `long:"name" env:"NAME" description:"node name, defaults to the hostname"`
	} `group:"node" namespace:"node" env-namespace:"NODE"`

	HTTP struct {
		BindAddr   string `long:"bind-addr" description:"address to bind the http api" env:"BIND_ADDR" default:":8080"`
		PublicAddr string `long:"public-addr" description:"address advertised to other gateways" env:"PUBLIC_ADDR"`
	} `group:"http" namespace:"http" env-namespace:"HTTP"`

	Gossip struct {
		BindAddr      string `long:"bind-addr" description:"address to bind the gossip listener" env:"BIND_ADDR" default:"0.0.0.0:45892"`
		AdvertiseAddr string `long:"advertise-addr" description:"gossip address advertised to other nodes" env:"ADVERTISE_ADDR"`
		JoinAddrs     string `long:"join-addrs" description:"comma-separated list of nodes to join" env:"JOIN_ADDRS"`
	} `group:"gossip" namespace:"gossip" env-namespace:"GOSSIP"`

	Discovery struct {
		Enabled       bool   `long:"enabled" description:"enable multicast peer discovery" env:"ENABLED"`
		Port          int    `long:"port" description:"udp port for discovery announcements, must differ from the gossip port" env:"PORT" default:"45893"`
		Iface         string `long:"iface" description:"interface for the multicast listener" env:"IFACE"`
		MulticastAddr string `long:"multicast-addr" description:"multicast group address" env:"MULTICAST_ADDR" default:"239.192.32.12"`
		Secret        string `long:"secret" description:"shared cluster secret" env:"SECRET"`
	} `group:"discovery" namespace:"discovery" env-namespace:"DISCOVERY"`

	Dispatch struct {
		CallTimeout int `long:"call-timeout" description:"per-request timeout (ms)" env:"CALL_TIMEOUT" default:"3000"`
		DialTimeout int `long:"dial-timeout" description:"worker dial timeout (ms)" env:"DIAL_TIMEOUT" default:"2000"`
	} `group:"dispatch" namespace:"dispatch" env-namespace:"DISPATCH"`

	Verbose bool `long:"verbose" description:"verbose mode" env:"VERBOSE"`
}

func parseAddrs(addrs string) []string {
	sl := strings.Split(addrs, ",")
	res := make([]string, 0, len(sl))

	for _, addr := range sl {
		trimmed := strings.TrimSpace(addr)
		if trimmed != "" {
			res = append(res, trimmed)
		}
	}

	return res
}
