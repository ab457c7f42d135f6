// Package validator provides configuration validation
package validator

import (
	"fmt"
	"net"
	"strings"

	"bwgen/internal/config/schema"
	"bwgen/internal/constants"
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string // Field path (e.g., "server.stream.port")
	Value   string // Current value
	Message string // Error message
	Hint    string // Fix suggestion
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult contains all validation errors
type ValidationResult struct {
	Errors []ValidationError
}

// IsValid returns true if there are no validation errors
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Error returns a formatted error message
func (r *ValidationResult) Error() string {
	if r.IsValid() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n\n")

	for i, err := range r.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Field))
		if err.Value != "" {
			sb.WriteString(fmt.Sprintf("     Current value: %s\n", err.Value))
		}
		sb.WriteString(fmt.Sprintf("     Error: %s\n", err.Message))
		if err.Hint != "" {
			sb.WriteString(fmt.Sprintf("     Hint: %s\n", err.Hint))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// AddError adds a validation error
func (r *ValidationResult) AddError(field, value, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
		Hint:    hint,
	})
}

// HasField reports whether any error was recorded for field
func (r *ValidationResult) HasField(field string) bool {
	for _, e := range r.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}

// Validator validates configuration
type Validator struct {
	rules []ValidationRule
}

// ValidationRule is a function that validates configuration
type ValidationRule func(cfg *schema.Root, result *ValidationResult)

// NewValidator creates a new Validator with default rules
func NewValidator() *Validator {
	v := &Validator{
		rules: make([]ValidationRule, 0),
	}

	v.AddRule(validateStream)
	v.AddRule(validateDatagram)
	v.AddRule(validatePayload)
	v.AddRule(validateHTTP)
	v.AddRule(validateLog)
	v.AddRule(validateDependencies)

	return v
}

// AddRule adds a validation rule
func (v *Validator) AddRule(rule ValidationRule) {
	v.rules = append(v.rules, rule)
}

// Validate validates the configuration
func (v *Validator) Validate(cfg *schema.Root) *ValidationResult {
	result := &ValidationResult{
		Errors: make([]ValidationError, 0),
	}

	for _, rule := range v.rules {
		rule(cfg, result)
	}

	return result
}

// ValidateConfig is a convenience function that creates a validator and validates
func ValidateConfig(cfg *schema.Root) *ValidationResult {
	return NewValidator().Validate(cfg)
}

// ============================================================================
// Validation Rules
// ============================================================================

func validateStream(cfg *schema.Root, result *ValidationResult) {
	st := cfg.Server.Stream
	if !st.Enabled {
		return
	}

	validatePort("server.stream.port", st.Port, result)
	validateHost("server.stream.host", st.Host, result)

	switch st.Protocol {
	case schema.StreamProtocolTCP:
	case schema.StreamProtocolKCP:
		validateKCP(st.KCP, result)
	default:
		result.AddError("server.stream.protocol",
			st.Protocol,
			"invalid stream protocol",
			"Use one of: tcp, kcp")
	}

	if st.MaxConnections < 1 {
		result.AddError("server.stream.max_connections",
			fmt.Sprintf("%d", st.MaxConnections),
			"max_connections must be at least 1",
			"Set a positive value, e.g., 1024")
	}
	if st.ReadTimeout <= 0 {
		result.AddError("server.stream.read_timeout",
			st.ReadTimeout.String(),
			"read_timeout must be positive",
			"Set a value such as 30s")
	}
	if st.WriteTimeout <= 0 {
		result.AddError("server.stream.write_timeout",
			st.WriteTimeout.String(),
			"write_timeout must be positive",
			"Set a value such as 30s")
	}
	if st.SendRate < 0 {
		result.AddError("server.stream.send_rate",
			fmt.Sprintf("%d", st.SendRate),
			"send_rate must not be negative",
			"Use 0 for unlimited")
	}
}

func validateKCP(k schema.KCPConfig, result *ValidationResult) {
	if k.Mode != schema.KCPModeNormal && k.Mode != schema.KCPModeFast {
		result.AddError("server.stream.kcp.mode",
			k.Mode,
			"invalid KCP mode",
			"Use one of: normal, fast")
	}
	if k.SndWnd < 1 || k.RcvWnd < 1 {
		result.AddError("server.stream.kcp.snd_wnd",
			fmt.Sprintf("%d/%d", k.SndWnd, k.RcvWnd),
			"KCP windows must be positive",
			"Use 1024 for both windows")
	}
	if k.MTU < 576 || k.MTU > 1500 {
		result.AddError("server.stream.kcp.mtu",
			fmt.Sprintf("%d", k.MTU),
			"KCP MTU must be between 576 and 1500",
			"Use 1400")
	}
}

func validateDatagram(cfg *schema.Root, result *ValidationResult) {
	dg := cfg.Server.Datagram
	if !dg.Enabled {
		return
	}

	validatePort("server.datagram.port", dg.Port, result)
	validateHost("server.datagram.host", dg.Host, result)

	if dg.SocketBuffer < 0 {
		result.AddError("server.datagram.socket_buffer",
			fmt.Sprintf("%d", dg.SocketBuffer),
			"socket_buffer must not be negative",
			"Use 0 to keep the OS default")
	}
	if dg.SendRate < 0 {
		result.AddError("server.datagram.send_rate",
			fmt.Sprintf("%d", dg.SendRate),
			"send_rate must not be negative",
			"Use 0 for unlimited")
	}
	if dg.PerSourceRate < 0 {
		result.AddError("server.datagram.per_source_rate",
			fmt.Sprintf("%g", dg.PerSourceRate),
			"per_source_rate must not be negative",
			"Use 0 to disable per-sender limits")
	}
	if dg.PerSourceRate > 0 {
		if dg.PerSourceBurst < 1 {
			result.AddError("server.datagram.per_source_burst",
				fmt.Sprintf("%d", dg.PerSourceBurst),
				"per_source_burst must be at least 1 when per_source_rate is set",
				"Set a small positive value, e.g., 4")
		}
		if dg.PerSourceCache < 1 {
			result.AddError("server.datagram.per_source_cache",
				fmt.Sprintf("%d", dg.PerSourceCache),
				"per_source_cache must be at least 1 when per_source_rate is set",
				"Set a value such as 4096")
		}
	}
	if dg.Batch && (dg.BatchSize < 1 || dg.BatchSize > 1024) {
		result.AddError("server.datagram.batch_size",
			fmt.Sprintf("%d", dg.BatchSize),
			"batch_size must be between 1 and 1024",
			"Use 32")
	}
}

func validatePayload(cfg *schema.Root, result *ValidationResult) {
	p := cfg.Payload

	if p.ChunkSize < 1 {
		result.AddError("payload.chunk_size",
			fmt.Sprintf("%d", p.ChunkSize),
			"chunk_size must be positive",
			"Use 1024")
	}
	if len(p.Filler) != 1 {
		result.AddError("payload.filler",
			p.Filler,
			"filler must be exactly one byte",
			"Use X")
	}
	if p.MaxRequestBytes < 0 {
		result.AddError("payload.max_request_bytes",
			fmt.Sprintf("%d", p.MaxRequestBytes),
			"max_request_bytes must not be negative",
			"Use 0 for unlimited")
	}

	if len(p.Units) == 0 {
		result.AddError("payload.units",
			"",
			"at least one unit must be enabled",
			"Use [GB, MB, KB, B]")
	}
	known := map[string]bool{
		schema.UnitB:  true,
		schema.UnitKB: true,
		schema.UnitMB: true,
		schema.UnitGB: true,
	}
	enabled := make(map[string]bool, len(p.Units))
	for _, u := range p.Units {
		if !known[u] {
			result.AddError("payload.units",
				u,
				"unknown unit",
				"Use any of: GB, MB, KB, B")
		}
		enabled[u] = true
	}
	if p.DefaultUnit != "" && !enabled[p.DefaultUnit] {
		result.AddError("payload.default_unit",
			p.DefaultUnit,
			"default_unit must be one of the enabled units",
			"Add it to payload.units or leave default_unit empty")
	}
}

func validateHTTP(cfg *schema.Root, result *ValidationResult) {
	h := cfg.HTTP
	if !h.Enabled {
		return
	}

	if _, err := net.ResolveTCPAddr("tcp", h.Listen); err != nil || h.Listen == "" {
		result.AddError("http.listen",
			h.Listen,
			"invalid listen address",
			"Use format host:port, e.g., 0.0.0.0:8080")
	}
	if len(h.Filler) != 1 {
		result.AddError("http.filler",
			h.Filler,
			"filler must be exactly one byte",
			"Use A")
	}
	if h.MaxBytes < 1 {
		result.AddError("http.max_bytes",
			fmt.Sprintf("%d", h.MaxBytes),
			"max_bytes must be positive",
			"Use 1073741824 (1 GiB)")
	}
	if h.MaxUploadBytes < 1 {
		result.AddError("http.max_upload_bytes",
			fmt.Sprintf("%d", h.MaxUploadBytes),
			"max_upload_bytes must be positive",
			"Use 33554432 (32 MiB)")
	}
}

func validateLog(cfg *schema.Root, result *ValidationResult) {
	validateLogLevel("log.level", cfg.Log.Level, result)
	validateLogFormat("log.format", cfg.Log.Format, result)
}

func validateDependencies(cfg *schema.Root, result *ValidationResult) {
	if !cfg.Server.Stream.Enabled && !cfg.Server.Datagram.Enabled {
		result.AddError("server",
			"",
			"at least one listener must be enabled",
			"Enable server.stream or server.datagram")
	}

	// kcp and the datagram listener both bind UDP
	st, dg := cfg.Server.Stream, cfg.Server.Datagram
	if st.Enabled && dg.Enabled && st.Protocol == schema.StreamProtocolKCP &&
		st.Port == dg.Port && st.Port != 0 {
		result.AddError("server.stream.port",
			fmt.Sprintf("%d", st.Port),
			"kcp stream port collides with the datagram port",
			"Use different ports for server.stream and server.datagram")
	}

	if dg.Enabled && cfg.Payload.ChunkSize > constants.MaxDatagramPayload {
		result.AddError("payload.chunk_size",
			fmt.Sprintf("%d", cfg.Payload.ChunkSize),
			"chunk_size does not fit in one datagram",
			fmt.Sprintf("Use a value <= %d", constants.MaxDatagramPayload))
	}
}

// ============================================================================
// Helpers
// ============================================================================

// validatePort accepts 0 for an OS-assigned port
func validatePort(field string, port int, result *ValidationResult) {
	if port < 0 || port > 65535 {
		result.AddError(field,
			fmt.Sprintf("%d", port),
			"port must be between 0 and 65535",
			"Use a valid port number, e.g., 9000")
		return
	}
	if port > 0 && port < 1024 {
		result.AddError(field,
			fmt.Sprintf("%d", port),
			"port below 1024 requires root privileges",
			"Use a port >= 1024 or run as root")
	}
}

func validateHost(field, host string, result *ValidationResult) {
	if host == "" {
		return
	}
	if host != "0.0.0.0" && host != "localhost" && host != "::" {
		if net.ParseIP(host) == nil {
			result.AddError(field,
				host,
				"invalid host address",
				"Use a valid IP address or 0.0.0.0")
		}
	}
}

func validateLogLevel(field, level string, result *ValidationResult) {
	validLevels := map[string]bool{
		schema.LogLevelDebug: true,
		schema.LogLevelInfo:  true,
		schema.LogLevelWarn:  true,
		schema.LogLevelError: true,
	}
	if !validLevels[level] && level != "" {
		result.AddError(field,
			level,
			"invalid log level",
			"Use one of: debug, info, warn, error")
	}
}

func validateLogFormat(field, format string, result *ValidationResult) {
	validFormats := map[string]bool{
		schema.LogFormatText: true,
		schema.LogFormatJSON: true,
	}
	if !validFormats[format] && format != "" {
		result.AddError(field,
			format,
			"invalid log format",
			"Use one of: text, json")
	}
}
