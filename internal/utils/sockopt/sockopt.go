// Package sockopt 在绑定前为监听套接字设置选项
package sockopt

import (
	"net"
	"syscall"
)

// Options Control 设置的套接字选项
type Options struct {
	ReuseAddr  bool
	RecvBuffer int // 字节，0 保持系统默认
	SendBuffer int // 字节，0 保持系统默认
}

// ListenConfig 返回对每个新建套接字应用 opts 的 net.ListenConfig
func ListenConfig(opts Options) *net.ListenConfig {
	return &net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var serr error
			if err := c.Control(func(fd uintptr) {
				serr = apply(fd, opts)
			}); err != nil {
				return err
			}
			return serr
		},
	}
}
