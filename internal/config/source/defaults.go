package source

import (
	"bwgen/internal/config/schema"
	"bwgen/internal/constants"
)

// DefaultSource provides the built-in configuration values
type DefaultSource struct{}

// NewDefaultSource creates a new DefaultSource
func NewDefaultSource() *DefaultSource {
	return &DefaultSource{}
}

// Name returns the source name
func (s *DefaultSource) Name() string {
	return "defaults"
}

// Priority returns the source priority
func (s *DefaultSource) Priority() int {
	return PriorityDefaults
}

// LoadInto applies default values to the config structure
func (s *DefaultSource) LoadInto(cfg *schema.Root) error {
	cfg.Server.ShutdownTimeout = constants.DefaultShutdownTimeout

	cfg.Server.Stream = schema.StreamConfig{
		Enabled:        true,
		Host:           "0.0.0.0",
		Port:           constants.DefaultStreamPort,
		Protocol:       schema.StreamProtocolTCP,
		MaxConnections: constants.DefaultMaxConnections,
		ReadTimeout:    constants.DefaultReadTimeout,
		WriteTimeout:   constants.DefaultWriteTimeout,
		ErrorReply:     true,
		KCP: schema.KCPConfig{
			Mode:   schema.KCPModeFast,
			SndWnd: constants.KCPSndWnd,
			RcvWnd: constants.KCPRcvWnd,
			MTU:    constants.KCPMTU,
		},
	}

	cfg.Server.Datagram = schema.DatagramConfig{
		Enabled:        true,
		Host:           "0.0.0.0",
		Port:           constants.DefaultDatagramPort,
		SocketBuffer:   constants.DefaultSocketBuffer,
		PerSourceBurst: 4,
		PerSourceCache: 4096,
		Batch:          true,
		BatchSize:      32,
	}

	cfg.Payload = schema.PayloadConfig{
		ChunkSize:       constants.DefaultChunkSize,
		Filler:          string(constants.DefaultFiller),
		Units:           []string{schema.UnitGB, schema.UnitMB, schema.UnitKB, schema.UnitB},
		MaxRequestBytes: constants.DefaultMaxRequestBytes,
	}

	cfg.HTTP = schema.HTTPConfig{
		Enabled:        false,
		Listen:         constants.DefaultHTTPListen,
		Filler:         string(constants.DefaultHTTPFiller),
		MaxBytes:       constants.DefaultHTTPMaxBytes,
		MaxUploadBytes: constants.DefaultMaxUploadBytes,
		ReadTimeout:    constants.DefaultReadTimeout,
		WriteTimeout:   0,
	}

	cfg.Log = schema.LogConfig{
		Level:   schema.LogLevelInfo,
		Format:  schema.LogFormatText,
		Console: true,
	}

	return nil
}

// GetDefaultConfig returns a new Root populated with defaults
func GetDefaultConfig() *schema.Root {
	cfg := &schema.Root{}
	_ = NewDefaultSource().LoadInto(cfg)
	return cfg
}
