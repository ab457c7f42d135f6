//go:build !windows

package sockopt

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func apply(fd uintptr, opts Options) error {
	s := int(fd)
	if opts.ReuseAddr {
		if err := unix.SetsockoptInt(s, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return fmt.Errorf("failed to set SO_REUSEADDR: %w", err)
		}
	}
	// 缓冲区大小尽力设置，内核会按上限截断
	if opts.RecvBuffer > 0 {
		_ = unix.SetsockoptInt(s, unix.SOL_SOCKET, unix.SO_RCVBUF, opts.RecvBuffer)
	}
	if opts.SendBuffer > 0 {
		_ = unix.SetsockoptInt(s, unix.SOL_SOCKET, unix.SO_SNDBUF, opts.SendBuffer)
	}
	return nil
}
