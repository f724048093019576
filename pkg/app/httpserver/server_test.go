package httpserver

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/switchly-settlement/pkg/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestNew(t *testing.T) {
	srv := New(&config.ServerConfig{
		Host:         "127.0.0.1",
		Port:         8080,
		ReadTimeout:  time.Second,
		WriteTimeout: 2 * time.Second,
		IdleTimeout:  3 * time.Second,
	}, http.NotFoundHandler())

	assert.Equal(t, "127.0.0.1:8080", srv.Addr)
	assert.Equal(t, 2*time.Second, srv.WriteTimeout)
	assert.Equal(t, 3*time.Second, srv.IdleTimeout)
}

func TestServeAndWait_NilServer(t *testing.T) {
	err := ServeAndWait(context.Background(), zap.NewNop(), nil, time.Second)
	assert.Error(t, err)
}

func TestServeAndWait_ShutsDownOnCancel(t *testing.T) {
	srv := New(&config.ServerConfig{Host: "127.0.0.1", Port: freePort(t)}, http.NotFoundHandler())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeAndWait(ctx, zap.NewNop(), srv, time.Second) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", srv.Addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeAndWait_ListenFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	srv := &http.Server{Addr: l.Addr().String(), Handler: http.NotFoundHandler()}
	err = ServeAndWait(context.Background(), zap.NewNop(), srv, time.Second)
	assert.Error(t, err)
}
