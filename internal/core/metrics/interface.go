package metrics

// Metrics 指标收集接口
// 内存实现供单进程使用，接口形状与 Prometheus 客户端保持一致
type Metrics interface {
	IncrementCounter(name string, labels map[string]string) error
	AddCounter(name string, value float64, labels map[string]string) error
	GetCounter(name string, labels map[string]string) (float64, error)

	SetGauge(name string, value float64, labels map[string]string) error
	AddGauge(name string, delta float64, labels map[string]string) error
	GetGauge(name string, labels map[string]string) (float64, error)

	// Snapshot 返回全部指标的当前值，键为 name{label=value}
	Snapshot() map[string]float64

	Close() error
}

// 指标名称
const (
	StreamSessionsTotal    = "stream_sessions_total"
	StreamSessionsActive   = "stream_sessions_active"
	StreamSessionsRejected = "stream_sessions_rejected_total"
	StreamBytesSent        = "stream_bytes_sent_total"
	DatagramExchanges      = "datagram_exchanges_total"
	DatagramDropped        = "datagram_dropped_total"
	DatagramBytesSent      = "datagram_bytes_sent_total"
	DatagramPacketsSent    = "datagram_packets_sent_total"
	RequestsInvalid        = "requests_invalid_total"
	HTTPRequests           = "http_requests_total"
	HTTPBytesSent          = "http_bytes_sent_total"
	IOErrors               = "io_errors_total"
)
