// Package errors 提供统一的错误处理机制
//
// 错误码用于日志分类和 HTTP 响应，
// 线路上的客户端只会看到固定的错误文本，不会看到错误码或原因链。
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode 错误码类型
type ErrorCode string

// 错误码定义
const (
	// 请求错误
	CodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	CodeInvalidParam   ErrorCode = "INVALID_PARAM"
	CodeUnknownUnit    ErrorCode = "UNKNOWN_UNIT"
	CodeConfigError    ErrorCode = "CONFIG_ERROR"

	// 配额/资源
	CodeQuotaExceeded     ErrorCode = "QUOTA_EXCEEDED"
	CodeRateLimited       ErrorCode = "RATE_LIMITED"
	CodeResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"

	// 系统错误
	CodeInternal      ErrorCode = "INTERNAL_ERROR"
	CodeNetworkError  ErrorCode = "NETWORK_ERROR"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCancelled     ErrorCode = "CANCELLED"
	CodeServiceClosed ErrorCode = "SERVICE_CLOSED"
	CodeBindFailed    ErrorCode = "BIND_FAILED"
)

// Error 统一错误类型
type Error struct {
	Code    ErrorCode // 错误码
	Message string    // 错误消息
	Cause   error     // 原始错误
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Unwrap
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 按错误码比较
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New 创建新错误
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf 创建格式化错误
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf 格式化包装错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// GetCode 从错误中提取错误码，非 *Error 一律视为内部错误
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode 检查错误是否为指定错误码
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Is 重导出 errors.Is
var Is = errors.Is

// As 重导出 errors.As
var As = errors.As
