//go:build windows

package sockopt

import "syscall"

func apply(fd uintptr, opts Options) error {
	h := syscall.Handle(fd)
	if opts.RecvBuffer > 0 {
		_ = syscall.SetsockoptInt(h, syscall.SOL_SOCKET, syscall.SO_RCVBUF, opts.RecvBuffer)
	}
	if opts.SendBuffer > 0 {
		_ = syscall.SetsockoptInt(h, syscall.SOL_SOCKET, syscall.SO_SNDBUF, opts.SendBuffer)
	}
	return nil
}
