package kcptransport

import (
	"bufio"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenDial_RoundTrip(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", DefaultOptions())
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		line, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil {
			done <- err
			return
		}
		_, err = conn.Write([]byte("echo:" + line))
		if err == nil {
			conn.(*Conn).Linger(2 * time.Second)
		}
		done <- err
	}()

	conn, err := Dial(ln.Addr().String(), DefaultOptions())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello\n"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	buf := make([]byte, len("echo:hello\n"))
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "echo:hello\n", string(buf))

	require.NoError(t, conn.(*Conn).Ack())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server side did not finish")
	}
}

func TestListen_BadAddress(t *testing.T) {
	_, err := Listen("256.0.0.1:0", DefaultOptions())
	assert.Error(t, err)
}
