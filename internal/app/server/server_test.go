package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bwgen/internal/config/schema"
	"bwgen/internal/config/source"
	"bwgen/internal/constants"
	coreerrors "bwgen/internal/core/errors"
	corelog "bwgen/internal/core/log"
	"bwgen/internal/health"
)

func loopbackConfig() *schema.Root {
	cfg := source.GetDefaultConfig()
	cfg.Server.Stream.Host = "127.0.0.1"
	cfg.Server.Stream.Port = 0
	cfg.Server.Datagram.Host = "127.0.0.1"
	cfg.Server.Datagram.Port = 0
	cfg.HTTP.Enabled = true
	cfg.HTTP.Listen = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = 5 * time.Second
	return cfg
}

func newServer(t *testing.T, cfg *schema.Root) *Server {
	t.Helper()
	s, err := New(context.Background(), cfg, "", WithLogger(corelog.NewTestLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func addrOf(t *testing.T, s *Server, name string) net.Addr {
	t.Helper()
	for _, svc := range s.Services() {
		if svc.Name() == name {
			return svc.Addr()
		}
	}
	t.Fatalf("service %s not found", name)
	return nil
}

func TestServer_RunAndShutdown(t *testing.T) {
	s := newServer(t, loopbackConfig())
	require.Len(t, s.Services(), 3)
	require.NoError(t, s.Bind(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// stream
	conn, err := net.Dial("tcp", addrOf(t, s, "stream-tcp").String())
	require.NoError(t, err)
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	_, err = conn.Write([]byte("2|KB\n"))
	require.NoError(t, err)
	got, err := io.ReadAll(conn)
	require.NoError(t, err)
	conn.Close()
	help := len("Inform <size>|<unit> - e.g: 4|MB\nUnits available (GB, MB, KB, B)\n\n")
	assert.Len(t, got, help+2048)

	// datagram
	uc, err := net.Dial("udp", addrOf(t, s, "datagram-udp").String())
	require.NoError(t, err)
	defer uc.Close()
	require.NoError(t, uc.SetDeadline(time.Now().Add(5*time.Second)))
	_, err = uc.Write([]byte("nope"))
	require.NoError(t, err)
	buf := make([]byte, 2048)
	n, err := uc.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, constants.ErrorText, string(buf[:n]))

	// http
	resp, err := http.Get("http://" + addrOf(t, s, "http").String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, health.HealthStatusDraining, s.Health().GetStatus())
}

func TestServer_BindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := loopbackConfig()
	cfg.HTTP.Listen = taken.Addr().String()
	s := newServer(t, cfg)

	bindErr := make(chan error, 1)
	go func() { bindErr <- s.Bind(context.Background()) }()
	select {
	case err = <-bindErr:
	case <-time.After(5 * time.Second):
		t.Fatal("Bind did not return after a bind failure")
	}
	require.Error(t, err)

	// 失败前已绑定的服务被回滚
	for _, svc := range s.Services() {
		if svc.Name() == "http" {
			continue
		}
		closer, ok := svc.(interface{ IsClosed() bool })
		require.True(t, ok, svc.Name())
		assert.True(t, closer.IsClosed(), svc.Name())
	}

	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "http", se.Service)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeBindFailed))
	assert.Equal(t, health.HealthStatusUnhealthy, s.Health().GetStatus())
}

func TestServer_NoServices(t *testing.T) {
	cfg := loopbackConfig()
	cfg.Server.Stream.Enabled = false
	cfg.Server.Datagram.Enabled = false
	cfg.HTTP.Enabled = false

	_, err := New(context.Background(), cfg, "", WithLogger(corelog.NewNopLogger()))
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfigError))
}

func TestServer_Banner(t *testing.T) {
	s := newServer(t, loopbackConfig())
	var buf bytes.Buffer
	s.writeBanner(&buf)
	out := buf.String()
	assert.Contains(t, out, "Stream:")
	assert.Contains(t, out, "Datagram:")
	assert.Contains(t, out, "(defaults)")
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bwgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  stream:\n    port: 9100\n"), 0o600))

	cfg, used, err := LoadConfig(path, source.CLIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, 9100, cfg.Server.Stream.Port)
	assert.Equal(t, constants.DefaultDatagramPort, cfg.Server.Datagram.Port)

	require.NoError(t, os.WriteFile(path, []byte("payload:\n  chunk_size: -1\n"), 0o600))
	_, _, err = LoadConfig(path, source.CLIOverrides{})
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfigError))
}
