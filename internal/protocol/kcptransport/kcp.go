// Package kcptransport 提供基于 kcp-go 的可靠 UDP 流式传输
// 不启用加密和 FEC，监听器返回标准 net.Listener
package kcptransport

import (
	"net"
	"time"

	"github.com/xtaci/kcp-go/v5"

	"bwgen/internal/constants"
	coreerrors "bwgen/internal/core/errors"
)

// FEC 参数（0 表示禁用 FEC）
const (
	dataShards   = 0
	parityShards = 0
)

// StreamBufferSize 套接字缓冲区大小
const StreamBufferSize = 4 * 1024 * 1024

// Options KCP 参数
type Options struct {
	Fast   bool // 快速模式：nodelay=1 interval=10 resend=2 nc=1
	SndWnd int
	RcvWnd int
	MTU    int
}

// DefaultOptions 默认参数（快速模式）
func DefaultOptions() Options {
	return Options{
		Fast:   true,
		SndWnd: constants.KCPSndWnd,
		RcvWnd: constants.KCPRcvWnd,
		MTU:    constants.KCPMTU,
	}
}

// Listen 在 addr 上启动 KCP 监听
func Listen(addr string, opts Options) (net.Listener, error) {
	l, err := kcp.ListenWithOptions(addr, nil, dataShards, parityShards)
	if err != nil {
		return nil, coreerrors.Wrapf(err, coreerrors.CodeBindFailed, "failed to listen KCP on %s", addr)
	}
	_ = l.SetReadBuffer(StreamBufferSize)
	_ = l.SetWriteBuffer(StreamBufferSize)
	return &listener{Listener: l, opts: opts}, nil
}

// Dial 建立 KCP 连接
func Dial(addr string, opts Options) (net.Conn, error) {
	sess, err := kcp.DialWithOptions(addr, nil, dataShards, parityShards)
	if err != nil {
		return nil, coreerrors.Wrapf(err, coreerrors.CodeNetworkError, "failed to dial KCP %s", addr)
	}
	configure(sess, opts)
	return &Conn{UDPSession: sess}, nil
}

type listener struct {
	*kcp.Listener
	opts Options
}

// Accept 接受并配置 KCP 会话
func (l *listener) Accept() (net.Conn, error) {
	sess, err := l.Listener.AcceptKCP()
	if err != nil {
		return nil, err
	}
	configure(sess, l.opts)
	return &Conn{UDPSession: sess}, nil
}

func configure(sess *kcp.UDPSession, opts Options) {
	if opts.Fast {
		sess.SetNoDelay(1, 10, 2, 1)
	} else {
		sess.SetNoDelay(0, 40, 0, 0)
	}
	sess.SetWindowSize(opts.SndWnd, opts.RcvWnd)
	sess.SetMtu(opts.MTU)
	sess.SetStreamMode(true)
	sess.SetACKNoDelay(true)
	_ = sess.SetReadBuffer(StreamBufferSize)
	_ = sess.SetWriteBuffer(StreamBufferSize)
}

// Conn KCP 会话
// KCP 没有 FIN，直接 Close 会丢弃尚未确认的数据，
// 因此服务端在关闭前调用 Linger 等待对端确认收完
type Conn struct {
	*kcp.UDPSession
}

// Linger 阻塞直到对端发来任意字节、断开或超时
func (c *Conn) Linger(timeout time.Duration) {
	_ = c.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 1)
	_, _ = c.Read(buf)
}

// Ack 通知对端数据已收完，对应服务端的 Linger
func (c *Conn) Ack() error {
	_, err := c.Write([]byte{'\n'})
	return err
}
