package compilesrv

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_ServeAndShutdown(t *testing.T) {
	cfg, err := NewConfig(Config{CacheDir: t.TempDir(), WorkRoot: t.TempDir()})
	require.NoError(t, err)
	srv, err := NewServer(cfg, nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNewServer_BadProfilesPath(t *testing.T) {
	_, err := NewServer(&Config{ProfilesPath: "/does/not/exist.yaml"}, nil)
	assert.Error(t, err)
}
