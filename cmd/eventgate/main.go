package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jessevdk/go-flags"

	"eventgate/membership"
	"eventgate/registry"
)

func join(ctx context.Context, cluster *membership.Cluster, logger kitlog.Logger, addr string) {
	var (
		timeout = 10 * time.Second
		backoff = 1 * time.Second
		max     = 30 * time.Second
	)

	for {
		err := func() error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return cluster.Join(ctx, addr)
		}()

		if err == nil {
			level.Info(logger).Log("msg", "joined cluster", "addr", addr)
			return
		}

		level.Error(logger).Log(
			"msg", "failed to join cluster",
			"addr", addr,
			"err", err,
		)

		backoff = backoff * 2
		if backoff > max {
			backoff = max
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			continue
		}
	}
}

func main() {
	p := flags.NewParser(&opts, flags.Default)

	if _, err := p.Parse(); err != nil {
		if err.(*flags.Error).Type != flags.ErrHelp {
			fmt.Println("cli error:", err)
		}

		os.Exit(2)
	}

	wg := sync.WaitGroup{}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	// Initialize all components.
	logger, closeLogger := setupLogger()
	cluster, closeCluster := setupCluster(logger)
	peerDir, _, closeWatcher := setupWatcher(cluster, logger)

	gossipDir := registry.NewGossipDirectory(cluster, logger)
	workers := registry.NewClient(gossipDir)

	dispatcher, closeDispatcher := setupDispatcher(workers, logger)
	registrar := setupRegistrar(gossipDir, logger)
	closeAPIServer := setupAPIServer(&wg, dispatcher, peerDir, workers, registrar, logger)

	// Components must be shut down in a particular order.
	shutdownOrder := []shutdownFunc{
		closeAPIServer,
		closeCluster,
		closeWatcher,
		closeDispatcher,
		closeLogger,
	}

	bgCtx, cancelBg := context.WithCancel(context.Background())

	if opts.Discovery.Enabled {
		bootstrapper, closeDiscovery := setupDiscovery(cluster, logger)
		shutdownOrder = append([]shutdownFunc{closeDiscovery}, shutdownOrder...)

		if err := bootstrapper.MaybeStart(bgCtx); err != nil {
			level.Error(logger).Log("msg", "failed to start discovery", "err", err)
		}
	}

	// Join the cluster, in case we were given any addresses to join.
	for _, joinAddr := range parseAddrs(opts.Gossip.JoinAddrs) {
		go join(bgCtx, cluster, logger, joinAddr)
	}

	// Announce this gateway in the distributed registry.
	wg.Add(1)

	go func() {
		defer wg.Done()

		if err := registrar.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			level.Error(logger).Log("msg", "registration loop stopped", "err", err)
		}
	}()

	// Block until we receive a signal to shut down.
	<-interrupt
	cancelBg()
	level.Info(logger).Log("msg", "received interrupt signal, shutting down")

	unregCtx, cancelUnreg := context.WithTimeout(context.Background(), 5*time.Second)
	if err := registrar.Unregister(unregCtx); err != nil {
		level.Error(logger).Log("msg", "failed to unregister", "err", err)
	}
	cancelUnreg()

	// Shutdown all components.
	for _, f := range shutdownOrder {
		if err := f(context.Background()); err != nil {
			level.Error(logger).Log("msg", "failed to shutdown component", "err", err)
		}
	}

	// Wait for all components to finish background tasks.
	wg.Wait()
}
