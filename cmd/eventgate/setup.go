package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"eventgate/api"
	"eventgate/discovery"
	"eventgate/dispatch"
	"eventgate/internal/clock"
	"eventgate/membership"
	"eventgate/registration"
	"eventgate/registry"
	"eventgate/workerapi/grpcclient"
)

type shutdownFunc func(ctx context.Context) error

var noopShutdown = func(ctx context.Context) error { return nil }

func setupLogger() (kitlog.Logger, shutdownFunc) {
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))

	if !opts.Verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	return logger, noopShutdown
}

func nodeName() string {
	if opts.Node.Name != "" {
		return opts.Node.Name
	}

	hostname, err := os.Hostname()
	if err != nil {
		panic(fmt.Sprintf("failed to get hostname: %v", err))
	}

	return hostname
}

func discoveryConfig() discovery.Config {
	conf := discovery.DefaultConfig()
	conf.Port = opts.Discovery.Port
	conf.GossipPort = gossipPort()
	conf.BindIface = opts.Discovery.Iface
	conf.MulticastAddr = opts.Discovery.MulticastAddr
	conf.Secret = opts.Discovery.Secret

	return conf
}

func gossipPort() int {
	_, portStr, err := net.SplitHostPort(opts.Gossip.BindAddr)
	if err != nil {
		return 0
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}

	return port
}

func setupCluster(logger kitlog.Logger) (*membership.Cluster, shutdownFunc) {
	conf := membership.DefaultConfig()
	conf.NodeName = nodeName()
	conf.BindAddr = opts.Gossip.BindAddr
	conf.AdvertiseAddr = opts.Gossip.AdvertiseAddr
	conf.SecretKey = discoveryConfig().SecretKey()
	conf.Logger = logger

	cluster, err := membership.Create(conf)
	if err != nil {
		panic(fmt.Sprintf("failed to create cluster: %v", err))
	}

	shutdown := func(ctx context.Context) error {
		logger.Log("msg", "leaving cluster")

		if err := cluster.Leave(ctx); err != nil {
			return fmt.Errorf("failed to leave cluster: %w", err)
		}

		return nil
	}

	return cluster, shutdown
}

func setupWatcher(
	cluster *membership.Cluster,
	logger kitlog.Logger,
) (*membership.Directory, *membership.Watcher, shutdownFunc) {
	dirConf := membership.DefaultDirectoryConfig()
	dirConf.Logger = logger

	dir := membership.NewDirectory(grpcclient.NewProber(), dirConf)

	conf := membership.DefaultWatcherConfig()
	conf.Logger = logger

	watcher := membership.NewWatcher(cluster, dir, conf)
	watcher.Start()

	shutdown := func(ctx context.Context) error {
		logger.Log("msg", "stopping membership watcher")
		watcher.Stop()
		return nil
	}

	return dir, watcher, shutdown
}

func setupDispatcher(workers *registry.Client, logger kitlog.Logger) (*dispatch.Dispatcher, shutdownFunc) {
	conf := dispatch.DefaultConfig()
	conf.Workers = workers
	conf.Dialer = grpcclient.Dial
	conf.CallTimeout = time.Millisecond * time.Duration(opts.Dispatch.CallTimeout)
	conf.DialTimeout = time.Millisecond * time.Duration(opts.Dispatch.DialTimeout)
	conf.Logger = logger

	dispatcher := dispatch.New(conf)

	shutdown := func(ctx context.Context) error {
		logger.Log("msg", "closing dispatcher")
		dispatcher.Close()
		return nil
	}

	return dispatcher, shutdown
}

func setupRegistrar(dir registry.Directory, logger kitlog.Logger) *registration.Registrar {
	conf := registration.DefaultConfig()
	conf.Directory = dir
	conf.SelfAddr = opts.HTTP.PublicAddr
	conf.Logger = logger

	if conf.SelfAddr == "" {
		conf.SelfAddr = opts.HTTP.BindAddr
	}

	return registration.New(conf)
}

func setupDiscovery(cluster *membership.Cluster, logger kitlog.Logger) (*discovery.Bootstrapper, shutdownFunc) {
	bootstrapper := discovery.NewBootstrapper(discoveryConfig(), cluster, clock.System(), logger)

	shutdown := func(ctx context.Context) error {
		logger.Log("msg", "stopping discovery")
		bootstrapper.Stop()
		return nil
	}

	return bootstrapper, shutdown
}

func setupAPIServer(
	wg *sync.WaitGroup,
	dispatcher *dispatch.Dispatcher,
	peers api.PeerDirectory,
	workers api.WorkerView,
	registrar api.Registrar,
	logger kitlog.Logger,
) shutdownFunc {
	router := api.CreateRouter(dispatcher, peers, workers, registrar)

	ctx, cancel := context.WithCancel(context.Background())

	wg.Add(1)

	go func() {
		defer wg.Done()

		if err := api.StartServer(ctx, router, logger, opts.HTTP.BindAddr); err != nil {
			panic(fmt.Sprintf("failed to start API server: %v", err))
		}
	}()

	shutdown := func(ctx context.Context) error {
		logger.Log("msg", "shutting down API server")
		cancel()

		return nil
	}

	return shutdown
}
