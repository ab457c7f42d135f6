package sockopt

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenConfig_TCP(t *testing.T) {
	lc := ListenConfig(Options{ReuseAddr: true})
	ln, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	assert.NotZero(t, ln.Addr().(*net.TCPAddr).Port)
}

func TestListenConfig_UDP(t *testing.T) {
	lc := ListenConfig(Options{ReuseAddr: true, RecvBuffer: 1 << 20, SendBuffer: 1 << 20})
	pc, err := lc.ListenPacket(context.Background(), "udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	_, ok := pc.(*net.UDPConn)
	assert.True(t, ok)
}
