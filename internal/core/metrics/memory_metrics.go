package metrics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"bwgen/internal/core/dispose"
)

// MemoryMetrics 内存指标实现
type MemoryMetrics struct {
	*dispose.Dispose

	mu       sync.RWMutex
	counters map[string]*int64
	gauges   map[string]*uint64 // float64 位模式
}

var _ Metrics = (*MemoryMetrics)(nil)

// NewMemoryMetrics 创建内存指标收集器
func NewMemoryMetrics(parentCtx context.Context) *MemoryMetrics {
	return &MemoryMetrics{
		Dispose:  dispose.New(parentCtx, "MemoryMetrics", nil),
		counters: make(map[string]*int64),
		gauges:   make(map[string]*uint64),
	}
}

func (m *MemoryMetrics) counter(key string) *int64 {
	m.mu.RLock()
	c, ok := m.counters[key]
	m.mu.RUnlock()
	if ok {
		return c
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok = m.counters[key]; !ok {
		c = new(int64)
		m.counters[key] = c
	}
	return c
}

func (m *MemoryMetrics) gauge(key string) *uint64 {
	m.mu.RLock()
	g, ok := m.gauges[key]
	m.mu.RUnlock()
	if ok {
		return g
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok = m.gauges[key]; !ok {
		g = new(uint64)
		m.gauges[key] = g
	}
	return g
}

// IncrementCounter 增加计数器
func (m *MemoryMetrics) IncrementCounter(name string, labels map[string]string) error {
	atomic.AddInt64(m.counter(buildKey(name, labels)), 1)
	return nil
}

// AddCounter 增加计数器指定值，计数器只增不减
func (m *MemoryMetrics) AddCounter(name string, value float64, labels map[string]string) error {
	if value < 0 {
		return fmt.Errorf("counter %s cannot decrease", name)
	}
	atomic.AddInt64(m.counter(buildKey(name, labels)), int64(value))
	return nil
}

// GetCounter 获取计数器值
func (m *MemoryMetrics) GetCounter(name string, labels map[string]string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.counters[buildKey(name, labels)]; ok {
		return float64(atomic.LoadInt64(c)), nil
	}
	return 0, nil
}

// SetGauge 设置 Gauge 值
func (m *MemoryMetrics) SetGauge(name string, value float64, labels map[string]string) error {
	atomic.StoreUint64(m.gauge(buildKey(name, labels)), math.Float64bits(value))
	return nil
}

// AddGauge 调整 Gauge 值
func (m *MemoryMetrics) AddGauge(name string, delta float64, labels map[string]string) error {
	g := m.gauge(buildKey(name, labels))
	for {
		old := atomic.LoadUint64(g)
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(g, old, next) {
			return nil
		}
	}
}

// GetGauge 获取 Gauge 值
func (m *MemoryMetrics) GetGauge(name string, labels map[string]string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.gauges[buildKey(name, labels)]; ok {
		return math.Float64frombits(atomic.LoadUint64(g)), nil
	}
	return 0, nil
}

// Snapshot 导出当前全部指标
func (m *MemoryMetrics) Snapshot() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(m.counters)+len(m.gauges))
	for k, c := range m.counters {
		out[k] = float64(atomic.LoadInt64(c))
	}
	for k, g := range m.gauges {
		out[k] = math.Float64frombits(atomic.LoadUint64(g))
	}
	return out
}

// buildKey 构建指标键名，标签按键名排序
func buildKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := name
	for _, k := range keys {
		key = fmt.Sprintf("%s{%s=%s}", key, k, labels[k])
	}
	return key
}
