package health

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"
)

// ComponentStatus 组件状态
type ComponentStatus string

const (
	ComponentStatusHealthy   ComponentStatus = "healthy"
	ComponentStatusDegraded  ComponentStatus = "degraded"  // 部分功能不可用
	ComponentStatusUnhealthy ComponentStatus = "unhealthy" // 完全不可用
)

// ComponentHealth 组件健康信息
type ComponentHealth struct {
	Name      string          `json:"name"`
	Status    ComponentStatus `json:"status"`
	Address   string          `json:"address,omitempty"`
	Message   string          `json:"message,omitempty"`
	LastCheck time.Time       `json:"last_check"`
}

// HealthChecker 健康检查器接口
type HealthChecker interface {
	Check(ctx context.Context) (*ComponentHealth, error)
}

// CompositeHealthChecker 组合健康检查器，逐个执行已注册的检查器
type CompositeHealthChecker struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	timeout  time.Duration
}

// NewCompositeHealthChecker 创建组合健康检查器
func NewCompositeHealthChecker(timeout time.Duration) *CompositeHealthChecker {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &CompositeHealthChecker{
		checkers: make(map[string]HealthChecker),
		timeout:  timeout,
	}
}

// RegisterChecker 注册健康检查器，同名覆盖
func (c *CompositeHealthChecker) RegisterChecker(name string, checker HealthChecker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkers[name] = checker
}

// Names 已注册的检查器名称（有序）
func (c *CompositeHealthChecker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checkers))
	for name := range c.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckAll 检查所有注册的组件；检查出错或超时视为 unhealthy
func (c *CompositeHealthChecker) CheckAll(ctx context.Context) map[string]*ComponentHealth {
	c.mu.RLock()
	checkers := make(map[string]HealthChecker, len(c.checkers))
	for name, checker := range c.checkers {
		checkers[name] = checker
	}
	c.mu.RUnlock()

	results := make(map[string]*ComponentHealth, len(checkers))
	for name, checker := range checkers {
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		h, err := checker.Check(checkCtx)
		cancel()

		if err != nil {
			h = &ComponentHealth{
				Name:      name,
				Status:    ComponentStatusUnhealthy,
				Message:   err.Error(),
				LastCheck: time.Now(),
			}
		}
		if h != nil {
			results[name] = h
		}
	}
	return results
}

// OverallStatus 汇总状态：任一 unhealthy 即 unhealthy，其次 degraded
func OverallStatus(results map[string]*ComponentHealth) ComponentStatus {
	status := ComponentStatusHealthy
	for _, h := range results {
		switch h.Status {
		case ComponentStatusUnhealthy:
			return ComponentStatusUnhealthy
		case ComponentStatusDegraded:
			status = ComponentStatusDegraded
		}
	}
	return status
}

// ListenerProbe 监听器需要暴露给健康检查的最小接口
type ListenerProbe interface {
	Name() string
	Addr() net.Addr
	IsClosed() bool
}

// ListenerChecker 检查监听器是否已绑定且未关闭
type ListenerChecker struct {
	listener ListenerProbe
}

// NewListenerChecker 创建监听器检查器
func NewListenerChecker(l ListenerProbe) *ListenerChecker {
	return &ListenerChecker{listener: l}
}

// Check 检查监听器状态
func (c *ListenerChecker) Check(ctx context.Context) (*ComponentHealth, error) {
	h := &ComponentHealth{
		Name:      c.listener.Name(),
		Status:    ComponentStatusHealthy,
		LastCheck: time.Now(),
	}
	addr := c.listener.Addr()
	switch {
	case addr == nil:
		h.Status = ComponentStatusUnhealthy
		h.Message = "not bound"
	case c.listener.IsClosed():
		h.Status = ComponentStatusUnhealthy
		h.Address = addr.String()
		h.Message = "closed"
	default:
		h.Address = addr.String()
	}
	return h, nil
}
