package datagram

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bwgen/internal/config/schema"
	"bwgen/internal/constants"
	coreerrors "bwgen/internal/core/errors"
	corelog "bwgen/internal/core/log"
	"bwgen/internal/core/metrics"
	"bwgen/internal/payload"
)

const helpText = "Inform <size>|<unit> - e.g: 4|MB\nUnits available (GB, MB, KB, B)\n\n"

var udpLabels = map[string]string{"transport": "udp"}

// countingSender 只计数不发送的 Sender
type countingSender struct {
	packets int64
	bytes   int64
	flushes int
	last    []byte
	failAt  int64
}

func (s *countingSender) Send(p []byte, _ net.Addr) error {
	if s.failAt > 0 && s.packets+1 == s.failAt {
		return coreerrors.New(coreerrors.CodeNetworkError, "send failed")
	}
	s.packets++
	s.bytes += int64(len(p))
	s.last = p
	return nil
}

func (s *countingSender) Flush() error {
	s.flushes++
	return nil
}

func testConfig() Config {
	return Config{Address: "127.0.0.1:0", SocketBuffer: 1 << 20, Batch: true, BatchSize: 16}
}

func newTestListener(t *testing.T, cfg Config) (*Listener, *metrics.MemoryMetrics) {
	t.Helper()
	m := metrics.NewMemoryMetrics(context.Background())
	t.Cleanup(func() { m.Close() })
	l := NewListener(cfg, payload.NewParser(payload.DefaultParserConfig()), payload.DefaultGenerator(), corelog.NewTestLogger(t), m)
	return l, m
}

func startListener(t *testing.T, cfg Config) (*Listener, *metrics.MemoryMetrics, chan error) {
	t.Helper()
	l, m := newTestListener(t, cfg)
	require.NoError(t, l.Bind(context.Background()))

	served := make(chan error, 1)
	go func() { served <- l.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.Shutdown(ctx)
	})
	return l, m, served
}

func dial(t *testing.T, l *Listener) *net.UDPConn {
	t.Helper()
	conn, err := net.DialUDP("udp4", nil, l.Addr().(*net.UDPAddr))
	require.NoError(t, err)
	require.NoError(t, conn.SetReadBuffer(4<<20))
	t.Cleanup(func() { conn.Close() })
	return conn
}

func request(t *testing.T, conn *net.UDPConn, msg string) {
	t.Helper()
	_, err := conn.Write([]byte(msg))
	require.NoError(t, err)
}

func receive(t *testing.T, conn *net.UDPConn, timeout time.Duration) ([]byte, error) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	buf := make([]byte, 64*1024)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func TestListener_Tip(t *testing.T) {
	l, _, _ := startListener(t, testConfig())
	conn := dial(t, l)

	request(t, conn, "tip")
	got, err := receive(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, helpText, string(got))

	_, err = receive(t, conn, 200*time.Millisecond)
	assert.True(t, coreerrors.IsTimeout(err), "tip must be answered with exactly one datagram")
}

func TestListener_InvalidInput(t *testing.T) {
	l, m, _ := startListener(t, testConfig())
	conn := dial(t, l)

	for _, msg := range []string{"hello", "5|TB", "|", "tipx", "-1|KB"} {
		request(t, conn, msg)
		got, err := receive(t, conn, 2*time.Second)
		require.NoError(t, err, msg)
		assert.Equal(t, constants.ErrorText, string(got), msg)
	}

	assert.Eventually(t, func() bool {
		v, _ := m.GetCounter(metrics.RequestsInvalid, udpLabels)
		return v == 5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListener_Burst(t *testing.T) {
	for _, batch := range []bool{true, false} {
		cfg := testConfig()
		cfg.Batch = batch
		l, m, _ := startListener(t, cfg)
		conn := dial(t, l)

		request(t, conn, "64|KB\n")
		var total int64
		for total < 64*1024 {
			got, err := receive(t, conn, 2*time.Second)
			require.NoError(t, err, "batch=%v after %d bytes", batch, total)
			assert.Len(t, got, 1024)
			assert.Equal(t, bytes.Repeat([]byte{'X'}, len(got)), got)
			total += int64(len(got))
		}
		assert.Equal(t, int64(64*1024), total)

		assert.Eventually(t, func() bool {
			v, _ := m.GetCounter(metrics.DatagramPacketsSent, udpLabels)
			return v == 64
		}, 2*time.Second, 10*time.Millisecond)
	}
}

func TestListener_ShortRequestIsOneDatagram(t *testing.T) {
	l, _, _ := startListener(t, testConfig())
	conn := dial(t, l)

	request(t, conn, "100|B")
	got, err := receive(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Len(t, got, 100)

	_, err = receive(t, conn, 200*time.Millisecond)
	assert.True(t, coreerrors.IsTimeout(err))
}

func TestListener_PerSourceLimit(t *testing.T) {
	cfg := testConfig()
	cfg.PerSourceRate = 0.001
	cfg.PerSourceBurst = 1
	l, m, _ := startListener(t, cfg)
	conn := dial(t, l)

	request(t, conn, "tip")
	_, err := receive(t, conn, 2*time.Second)
	require.NoError(t, err)

	request(t, conn, "tip")
	_, err = receive(t, conn, 300*time.Millisecond)
	assert.True(t, coreerrors.IsTimeout(err))

	assert.Eventually(t, func() bool {
		v, _ := m.GetCounter(metrics.DatagramDropped, udpLabels)
		return v == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListener_Shutdown(t *testing.T) {
	l, _, served := startListener(t, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Shutdown(ctx))

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
	assert.True(t, l.IsClosed())
}

func TestListener_ShutdownWithoutServe(t *testing.T) {
	l, _ := newTestListener(t, testConfig())
	require.NoError(t, l.Bind(context.Background()))

	done := make(chan error, 1)
	go func() { done <- l.Shutdown(context.Background()) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Shutdown blocked on a receive loop that never started")
	}
	assert.True(t, l.IsClosed())

	// 关闭后的 Serve 立即返回，不再读取已关闭的套接字
	assert.NoError(t, l.Serve())

	// 重复 Shutdown 不阻塞
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, l.Shutdown(ctx))
}

func TestListener_ServeBeforeBind(t *testing.T) {
	l, _ := newTestListener(t, testConfig())
	err := l.Serve()
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeServiceClosed))
}

func TestExchange_LargeBurst(t *testing.T) {
	l, m := newTestListener(t, testConfig())
	s := &countingSender{}
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}

	ex := l.exchange(context.Background(), s, addr, []byte("2|GB"))

	assert.Equal(t, payload.KindData, ex.Request.Kind)
	assert.GreaterOrEqual(t, s.bytes, int64(2*1024*1024*1024))
	assert.Equal(t, int64(2*1024*1024), s.packets)
	assert.Equal(t, s.bytes, ex.Bytes)
	assert.Equal(t, 1, s.flushes)

	v, _ := m.GetCounter(metrics.DatagramBytesSent, udpLabels)
	assert.Equal(t, float64(s.bytes), v)
}

func TestExchange_Cancelled(t *testing.T) {
	l, _ := newTestListener(t, testConfig())
	s := &countingSender{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := l.exchange(ctx, s, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}, []byte("1|GB"))
	assert.Zero(t, s.packets)
	assert.Zero(t, ex.Bytes)
}

func TestExchange_SendFailure(t *testing.T) {
	l, m := newTestListener(t, testConfig())
	s := &countingSender{failAt: 3}

	ex := l.exchange(context.Background(), s, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}, []byte("10|KB"))
	assert.Equal(t, int64(2), ex.Packets)
	assert.Equal(t, int64(2048), ex.Bytes)

	v, _ := m.GetCounter(metrics.IOErrors, udpLabels)
	assert.Equal(t, 1.0, v)
}

func TestExchange_HelpAndError(t *testing.T) {
	l, _ := newTestListener(t, testConfig())
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}

	s := &countingSender{}
	l.exchange(context.Background(), s, addr, []byte(" tip \n"))
	assert.Equal(t, helpText, string(s.last))

	s = &countingSender{}
	ex := l.exchange(context.Background(), s, addr, []byte("4|PB"))
	assert.Equal(t, payload.KindInvalid, ex.Request.Kind)
	assert.Equal(t, constants.ErrorText, string(s.last))
	assert.Equal(t, int64(1), s.packets)
}

func TestSourceLimiter(t *testing.T) {
	lim, err := newSourceLimiter(0, 0, 0)
	require.NoError(t, err)
	assert.Nil(t, lim)
	assert.True(t, lim.Allow(&net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 1}))

	lim, err = newSourceLimiter(0.001, 2, 2)
	require.NoError(t, err)
	a := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 1}
	samehost := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 2}
	assert.True(t, lim.Allow(a))
	assert.True(t, lim.Allow(samehost))
	assert.False(t, lim.Allow(a))

	lim.Allow(&net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 1})
	lim.Allow(&net.UDPAddr{IP: net.IPv4(10, 0, 0, 3), Port: 1})
	assert.Equal(t, 2, lim.Len())
	// 被淘汰的发送方重新获得满令牌桶
	assert.True(t, lim.Allow(a))
}

func TestNetwork(t *testing.T) {
	assert.Equal(t, "udp4", network("0.0.0.0:9001"))
	assert.Equal(t, "udp6", network("[::1]:9001"))
	assert.Equal(t, "udp", network(":9001"))
	assert.Equal(t, "udp", network("localhost:9001"))
}

func TestConfigFromSchema(t *testing.T) {
	cfg := ConfigFromSchema(schema.DatagramConfig{Host: "127.0.0.1", Port: 9001, Batch: true, BatchSize: 8})
	assert.Equal(t, "127.0.0.1:9001", cfg.Address)
	assert.True(t, cfg.Batch)
	assert.Equal(t, 8, cfg.BatchSize)
}

func TestDirectSender_Error(t *testing.T) {
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	pc.Close()

	err = newDirectSender(pc).Send([]byte("x"), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, net.ErrClosed))
}
