// Package safe 提供带 panic 恢复的 Goroutine 启动与跟踪
package safe

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	corelog "bwgen/internal/core/log"
)

var (
	activeCount atomic.Int64
	totalCount  atomic.Int64
	panicCount  atomic.Int64
)

// Stats Goroutine 统计信息
type Stats struct {
	Active     int64 // 当前活跃数量
	Total      int64 // 累计创建数量
	PanicCount int64 // panic 次数
}

// GetStats 获取进程级统计信息
func GetStats() Stats {
	return Stats{
		Active:     activeCount.Load(),
		Total:      totalCount.Load(),
		PanicCount: panicCount.Load(),
	}
}

// Go 安全启动 Goroutine，panic 被恢复并记录到 logger
func Go(logger corelog.Logger, name string, fn func()) {
	totalCount.Add(1)
	activeCount.Add(1)
	go func() {
		defer recoverPanic(logger, name)
		fn()
	}()
}

func recoverPanic(logger corelog.Logger, name string) {
	activeCount.Add(-1)
	if r := recover(); r != nil {
		panicCount.Add(1)
		if logger == nil {
			logger = corelog.NewNopLogger()
		}
		logger.Errorf("SafeGo[%s]: panic recovered: %v\n%s", name, r, debug.Stack())
	}
}

// WaitGroup 跟踪一组安全 Goroutine
type WaitGroup struct {
	wg     sync.WaitGroup
	name   string
	logger corelog.Logger
}

// NewWaitGroup 创建 WaitGroup
func NewWaitGroup(name string, logger corelog.Logger) *WaitGroup {
	return &WaitGroup{name: name, logger: logger}
}

// Go 在 WaitGroup 中安全启动 Goroutine
func (w *WaitGroup) Go(fn func()) {
	w.wg.Add(1)
	Go(w.logger, w.name, func() {
		defer w.wg.Done()
		fn()
	})
}

// Wait 等待全部 Goroutine 结束
func (w *WaitGroup) Wait() {
	w.wg.Wait()
}
