package source

import (
	"os"
	"strconv"
	"strings"
	"time"

	"bwgen/internal/config/schema"
)

// EnvSource loads configuration from environment variables
type EnvSource struct {
	prefix string
}

// NewEnvSource creates a new EnvSource with the specified prefix
func NewEnvSource(prefix string) *EnvSource {
	return &EnvSource{
		prefix: prefix,
	}
}

// Name returns the source name
func (s *EnvSource) Name() string {
	return "env"
}

// Priority returns the source priority
func (s *EnvSource) Priority() int {
	return PriorityEnv
}

// LoadInto loads environment variables into the config structure
func (s *EnvSource) LoadInto(cfg *schema.Root) error {
	s.loadDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Stream listener
	st := &cfg.Server.Stream
	s.loadBool("STREAM_ENABLED", &st.Enabled)
	s.loadString("STREAM_HOST", &st.Host)
	s.loadInt("STREAM_PORT", &st.Port)
	s.loadString("STREAM_PROTOCOL", &st.Protocol)
	s.loadInt("STREAM_MAX_CONNECTIONS", &st.MaxConnections)
	s.loadDuration("STREAM_READ_TIMEOUT", &st.ReadTimeout)
	s.loadDuration("STREAM_WRITE_TIMEOUT", &st.WriteTimeout)
	s.loadBool("STREAM_ERROR_REPLY", &st.ErrorReply)
	s.loadInt64("STREAM_SEND_RATE", &st.SendRate)
	s.loadString("STREAM_KCP_MODE", &st.KCP.Mode)
	s.loadInt("STREAM_KCP_MTU", &st.KCP.MTU)

	// Datagram listener
	dg := &cfg.Server.Datagram
	s.loadBool("DATAGRAM_ENABLED", &dg.Enabled)
	s.loadString("DATAGRAM_HOST", &dg.Host)
	s.loadInt("DATAGRAM_PORT", &dg.Port)
	s.loadInt("DATAGRAM_SOCKET_BUFFER", &dg.SocketBuffer)
	s.loadInt64("DATAGRAM_SEND_RATE", &dg.SendRate)
	s.loadFloat64("DATAGRAM_PER_SOURCE_RATE", &dg.PerSourceRate)
	s.loadInt("DATAGRAM_PER_SOURCE_BURST", &dg.PerSourceBurst)
	s.loadBool("DATAGRAM_BATCH", &dg.Batch)

	// Payload
	s.loadInt("PAYLOAD_CHUNK_SIZE", &cfg.Payload.ChunkSize)
	s.loadString("PAYLOAD_FILLER", &cfg.Payload.Filler)
	s.loadStringSlice("PAYLOAD_UNITS", &cfg.Payload.Units)
	s.loadString("PAYLOAD_DEFAULT_UNIT", &cfg.Payload.DefaultUnit)
	s.loadBool("PAYLOAD_EXACT_BYTES", &cfg.Payload.ExactBytes)
	s.loadInt64("PAYLOAD_MAX_REQUEST_BYTES", &cfg.Payload.MaxRequestBytes)

	// HTTP
	s.loadBool("HTTP_ENABLED", &cfg.HTTP.Enabled)
	s.loadString("HTTP_LISTEN", &cfg.HTTP.Listen)
	s.loadInt64("HTTP_MAX_BYTES", &cfg.HTTP.MaxBytes)

	// Log
	s.loadString("LOG_LEVEL", &cfg.Log.Level)
	s.loadString("LOG_FORMAT", &cfg.Log.Format)
	s.loadString("LOG_FILE", &cfg.Log.File)
	s.loadBool("LOG_CONSOLE", &cfg.Log.Console)

	return nil
}

// getEnv gets environment variable with the configured prefix
func (s *EnvSource) getEnv(key string) (string, bool) {
	prefixedKey := s.prefix + "_" + key
	if v := os.Getenv(prefixedKey); v != "" {
		return v, true
	}
	return "", false
}

func (s *EnvSource) loadString(key string, target *string) {
	if v, ok := s.getEnv(key); ok {
		*target = v
	}
}

func (s *EnvSource) loadBool(key string, target *bool) {
	if v, ok := s.getEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

func (s *EnvSource) loadInt(key string, target *int) {
	if v, ok := s.getEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

func (s *EnvSource) loadInt64(key string, target *int64) {
	if v, ok := s.getEnv(key); ok {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			*target = i
		}
	}
}

func (s *EnvSource) loadFloat64(key string, target *float64) {
	if v, ok := s.getEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

func (s *EnvSource) loadDuration(key string, target *time.Duration) {
	if v, ok := s.getEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}

func (s *EnvSource) loadStringSlice(key string, target *[]string) {
	if v, ok := s.getEnv(key); ok {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			*target = result
		}
	}
}
