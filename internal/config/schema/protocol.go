package schema

import "time"

// Stream transport protocols
const (
	StreamProtocolTCP = "tcp"
	StreamProtocolKCP = "kcp"
)

// KCP modes
const (
	KCPModeNormal = "normal"
	KCPModeFast   = "fast"
)

// StreamConfig configures the connection-oriented listener
type StreamConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	Host           string        `yaml:"host" json:"host"`
	Port           int           `yaml:"port" json:"port"`
	Protocol       string        `yaml:"protocol" json:"protocol"` // tcp or kcp
	MaxConnections int           `yaml:"max_connections" json:"max_connections"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`   // waiting for the request line
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"` // per chunk write
	ErrorReply     bool          `yaml:"error_reply" json:"error_reply"`     // send the error text before closing on bad input
	SendRate       int64         `yaml:"send_rate" json:"send_rate"`         // bytes per second per session, 0 = unlimited
	KCP            KCPConfig     `yaml:"kcp" json:"kcp"`
}

// KCPConfig tunes the reliable-UDP stream transport
type KCPConfig struct {
	Mode   string `yaml:"mode" json:"mode"` // normal or fast
	SndWnd int    `yaml:"snd_wnd" json:"snd_wnd"`
	RcvWnd int    `yaml:"rcv_wnd" json:"rcv_wnd"`
	MTU    int    `yaml:"mtu" json:"mtu"`
}

// DatagramConfig configures the connectionless listener
type DatagramConfig struct {
	Enabled        bool    `yaml:"enabled" json:"enabled"`
	Host           string  `yaml:"host" json:"host"`
	Port           int     `yaml:"port" json:"port"`
	SocketBuffer   int     `yaml:"socket_buffer" json:"socket_buffer"`       // SO_RCVBUF/SO_SNDBUF in bytes
	SendRate       int64   `yaml:"send_rate" json:"send_rate"`               // bytes per second per exchange, 0 = unlimited
	PerSourceRate  float64 `yaml:"per_source_rate" json:"per_source_rate"`   // requests per second per sender, 0 = unlimited
	PerSourceBurst int     `yaml:"per_source_burst" json:"per_source_burst"` // token bucket size per sender
	PerSourceCache int     `yaml:"per_source_cache" json:"per_source_cache"` // number of senders tracked
	Batch          bool    `yaml:"batch" json:"batch"`                       // use batched sends where available
	BatchSize      int     `yaml:"batch_size" json:"batch_size"`
}
