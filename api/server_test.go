package api

import (
	"context"
	"testing"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

func TestStartServer_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	router := CreateRouter(&fakeDispatcher{}, &fakePeerDirectory{}, &fakeWorkerView{}, &fakeRegistrar{})

	done := make(chan error, 1)

	go func() {
		done <- StartServer(ctx, router, kitlog.NewNopLogger(), "127.0.0.1:0")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
