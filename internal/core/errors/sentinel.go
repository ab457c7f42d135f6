package errors

import (
	"context"
	"errors"
	"net"
	"os"
)

// 预定义哨兵错误（用于 errors.Is 比较）
var (
	ErrInvalidRequest  = New(CodeInvalidRequest, "invalid request")
	ErrInvalidParam    = New(CodeInvalidParam, "invalid parameter")
	ErrUnknownUnit     = New(CodeUnknownUnit, "unknown unit")
	ErrQuotaExceeded   = New(CodeQuotaExceeded, "request exceeds byte ceiling")
	ErrRateLimited     = New(CodeRateLimited, "rate limit exceeded")
	ErrTooManyConns    = New(CodeResourceExhausted, "too many connections")
	ErrNetworkError    = New(CodeNetworkError, "network error")
	ErrTimeout         = New(CodeTimeout, "operation timeout")
	ErrServiceClosed   = New(CodeServiceClosed, "service closed")
	ErrContextCanceled = New(CodeCancelled, "context cancelled")
)

// IsTimeout 检查是否为超时错误（包括 net.Error 超时和 deadline）
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if IsCode(err, CodeTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsClosed 检查是否为连接/监听器已关闭
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, net.ErrClosed) || IsCode(err, CodeServiceClosed)
}

// IsCanceled 检查是否为上下文取消
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || IsCode(err, CodeCancelled)
}
