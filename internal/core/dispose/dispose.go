// Package dispose 提供作用域资源管理：上下文 + 按注册顺序执行的清理处理器
//
// Close 与父上下文取消都会触发清理，且只执行一次。
package dispose

import (
	"context"
	"errors"
	"fmt"
	"sync"

	corelog "bwgen/internal/core/log"
)

// DisposeError 清理过程中的错误信息
type DisposeError struct {
	HandlerIndex int
	ResourceName string
	Err          error
}

func (e *DisposeError) Error() string {
	if e.ResourceName != "" {
		return fmt.Sprintf("cleanup resource[%s] handler[%d] failed: %v", e.ResourceName, e.HandlerIndex, e.Err)
	}
	return fmt.Sprintf("cleanup handler[%d] failed: %v", e.HandlerIndex, e.Err)
}

func (e *DisposeError) Unwrap() error {
	return e.Err
}

// Dispose 资源管理结构体
type Dispose struct {
	name   string
	logger corelog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	handlers []func() error
	errs     []error
	done     chan struct{}
}

// New 创建绑定到父上下文的 Dispose；父上下文结束时自动清理
func New(parent context.Context, name string, logger corelog.Logger) *Dispose {
	if parent == nil {
		parent = context.Background()
	}
	if logger == nil {
		logger = corelog.NewNopLogger()
	}
	d := &Dispose{
		name:   name,
		logger: logger,
		done:   make(chan struct{}),
	}
	d.ctx, d.cancel = context.WithCancel(parent)
	go func() {
		select {
		case <-d.ctx.Done():
			d.Close()
		case <-d.done:
		}
	}()
	return d
}

// Ctx 返回资源的生命周期上下文
func (d *Dispose) Ctx() context.Context {
	return d.ctx
}

// Name 资源名称
func (d *Dispose) Name() string {
	return d.name
}

// IsClosed 是否已关闭
func (d *Dispose) IsClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Done 关闭完成后被关闭的通道
func (d *Dispose) Done() <-chan struct{} {
	return d.done
}

// AddCleanHandler 添加清理处理器；已关闭时立即执行
func (d *Dispose) AddCleanHandler(f func() error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		if err := f(); err != nil {
			d.logger.WithError(err).Warnf("Dispose: late cleanup for %s failed", d.name)
		}
		return
	}
	d.handlers = append(d.handlers, f)
	d.mu.Unlock()
}

// Close 取消上下文并执行全部清理处理器，重复调用返回首次结果
func (d *Dispose) Close() error {
	d.mu.Lock()
	if d.closed {
		errs := d.errs
		d.mu.Unlock()
		return errors.Join(errs...)
	}
	d.closed = true
	handlers := d.handlers
	d.handlers = nil
	d.mu.Unlock()

	d.cancel()

	var errs []error
	for i, h := range handlers {
		if err := h(); err != nil {
			derr := &DisposeError{HandlerIndex: i, ResourceName: d.name, Err: err}
			errs = append(errs, derr)
			d.logger.WithError(err).Warnf("Dispose: cleanup handler[%d] for %s failed", i, d.name)
		}
	}

	d.mu.Lock()
	d.errs = errs
	d.mu.Unlock()
	close(d.done)
	return errors.Join(errs...)
}
