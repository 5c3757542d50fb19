package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

func CreateRouter(dispatcher Dispatcher, peers PeerDirectory, workers WorkerView, registrar Registrar) *chi.Mux {
	r := chi.NewRouter()

	NewStreamsHandler(dispatcher).Register(r)
	NewSubscriptionsHandler(dispatcher).Register(r)
	NewSnapshotsHandler(dispatcher).Register(r)
	NewClusterHandler(peers, workers, registrar).Register(r)

	return r
}

func StartServer(ctx context.Context, handler http.Handler, logger kitlog.Logger, bindAddr string) error {
	server := &http.Server{
		Addr:    bindAddr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			level.Error(logger).Log("msg", "failed to shutdown server", "err", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
