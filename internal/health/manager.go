package health

import (
	"context"
	"sync"
	"time"

	"bwgen/internal/core/dispose"
	corelog "bwgen/internal/core/log"
)

// HealthStatus 服务健康状态
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"   // 正常服务
	HealthStatusDraining  HealthStatus = "draining"  // 关闭中，等待进行中的传输结束
	HealthStatusUnhealthy HealthStatus = "unhealthy" // 不可用
)

// HealthInfo 健康信息
type HealthInfo struct {
	Status           HealthStatus                `json:"status"`
	ActiveSessions   int64                       `json:"active_sessions"`
	Uptime           int64                       `json:"uptime_seconds"`
	Version          string                      `json:"version,omitempty"`
	Details          map[string]string           `json:"details,omitempty"`
	Components       map[string]*ComponentHealth `json:"components,omitempty"`
	LastStatusChange time.Time                   `json:"last_status_change"`
}

// Serving 是否可以对外报告健康
func (i *HealthInfo) Serving() bool {
	return i.Status == HealthStatusHealthy && OverallStatus(i.Components) != ComponentStatusUnhealthy
}

// StatsProvider 提供活跃会话数
type StatsProvider interface {
	ActiveSessions() int64
}

// StatsFunc 将函数适配为 StatsProvider
type StatsFunc func() int64

// ActiveSessions 实现 StatsProvider
func (f StatsFunc) ActiveSessions() int64 { return f() }

// HealthManager 健康状态管理器
//
// 关闭流程中先切换为 draining，使外部探测提前摘除节点，再关闭监听器。
type HealthManager struct {
	*dispose.Dispose

	mu               sync.RWMutex
	status           HealthStatus
	startTime        time.Time
	lastStatusChange time.Time
	version          string
	details          map[string]string

	statsProvider StatsProvider
	checker       *CompositeHealthChecker
}

// NewHealthManager 创建健康状态管理器
func NewHealthManager(parentCtx context.Context, version string, logger corelog.Logger) *HealthManager {
	now := time.Now()
	return &HealthManager{
		Dispose:          dispose.New(parentCtx, "HealthManager", logger),
		status:           HealthStatusHealthy,
		startTime:        now,
		lastStatusChange: now,
		version:          version,
		details:          make(map[string]string),
		checker:          NewCompositeHealthChecker(time.Second),
	}
}

// SetStatsProvider 设置活跃会话统计来源
func (m *HealthManager) SetStatsProvider(provider StatsProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsProvider = provider
}

// RegisterChecker 注册组件检查器
func (m *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	m.checker.RegisterChecker(name, checker)
}

// GetStatus 获取当前健康状态
func (m *HealthManager) GetStatus() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// SetStatus 设置健康状态
func (m *HealthManager) SetStatus(status HealthStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != status {
		m.status = status
		m.lastStatusChange = time.Now()
	}
}

// IsHealthy 是否健康
func (m *HealthManager) IsHealthy() bool {
	return m.GetStatus() == HealthStatusHealthy
}

// IsDraining 是否在排空中
func (m *HealthManager) IsDraining() bool {
	return m.GetStatus() == HealthStatusDraining
}

// MarkDraining 标记为排空中
func (m *HealthManager) MarkDraining() {
	m.SetStatus(HealthStatusDraining)
}

// MarkUnhealthy 标记为不健康并记录原因
func (m *HealthManager) MarkUnhealthy(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = HealthStatusUnhealthy
	m.lastStatusChange = time.Now()
	m.details["unhealthy_reason"] = reason
}

// SetDetail 设置附加信息
func (m *HealthManager) SetDetail(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.details[key] = value
}

// GetHealthInfo 获取完整健康信息，包括各组件检查结果
func (m *HealthManager) GetHealthInfo(ctx context.Context) *HealthInfo {
	components := m.checker.CheckAll(ctx)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var active int64
	if m.statsProvider != nil {
		active = m.statsProvider.ActiveSessions()
	}
	details := make(map[string]string, len(m.details))
	for k, v := range m.details {
		details[k] = v
	}

	return &HealthInfo{
		Status:           m.status,
		ActiveSessions:   active,
		Uptime:           int64(time.Since(m.startTime).Seconds()),
		Version:          m.version,
		Details:          details,
		Components:       components,
		LastStatusChange: m.lastStatusChange,
	}
}
