package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without cause",
			err:      New(CodeUnknownUnit, "unit TB is not allowed"),
			expected: "[UNKNOWN_UNIT] unit TB is not allowed",
		},
		{
			name:     "with cause",
			err:      Wrap(errors.New("connection reset"), CodeNetworkError, "write chunk"),
			expected: "[NETWORK_ERROR] write chunk: connection reset",
		},
		{
			name:     "formatted message",
			err:      Newf(CodeInvalidParam, "invalid port: %d", 99999),
			expected: "[INVALID_PARAM] invalid port: 99999",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestError_Is(t *testing.T) {
	err1 := New(CodeInvalidRequest, "missing separator")
	err2 := New(CodeInvalidRequest, "bad size")
	err3 := New(CodeTimeout, "read line")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
	assert.True(t, errors.Is(err1, ErrInvalidRequest))

	wrapped := fmt.Errorf("session: %w", err3)
	assert.True(t, errors.Is(wrapped, ErrTimeout))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("original error")
	wrapped := Wrap(cause, CodeInternal, "wrapped")
	assert.Same(t, cause, errors.Unwrap(wrapped))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeQuotaExceeded, GetCode(ErrQuotaExceeded))
	assert.Equal(t, CodeNetworkError, GetCode(fmt.Errorf("outer: %w", Wrap(errors.New("x"), CodeNetworkError, "inner"))))
	assert.Equal(t, CodeInternal, GetCode(errors.New("standard")))
	assert.Equal(t, CodeInternal, GetCode(nil))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifiers(t *testing.T) {
	assert.True(t, IsTimeout(timeoutErr{}))
	assert.True(t, IsTimeout(os.ErrDeadlineExceeded))
	assert.True(t, IsTimeout(ErrTimeout))
	assert.False(t, IsTimeout(errors.New("eof")))
	assert.False(t, IsTimeout(nil))

	assert.True(t, IsClosed(fmt.Errorf("accept: %w", net.ErrClosed)))
	assert.True(t, IsClosed(ErrServiceClosed))
	assert.False(t, IsClosed(nil))

	assert.True(t, IsCanceled(context.Canceled))
	assert.False(t, IsCanceled(context.DeadlineExceeded))
}
