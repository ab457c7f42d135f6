package source

import (
	"bwgen/internal/config/schema"
)

// CLIOverrides holds values set through command-line flags
// Nil pointers mean "flag not given"
type CLIOverrides struct {
	LogLevel     *string
	StreamPort   *int
	DatagramPort *int
	Protocol     *string
	HTTPEnabled  *bool
	HTTPListen   *string
}

// CLISource applies command-line flag overrides
type CLISource struct {
	overrides CLIOverrides
}

// NewCLISource creates a new CLISource
func NewCLISource(overrides CLIOverrides) *CLISource {
	return &CLISource{overrides: overrides}
}

// Name returns the source name
func (s *CLISource) Name() string {
	return "cli"
}

// Priority returns the source priority
func (s *CLISource) Priority() int {
	return PriorityCLI
}

// LoadInto applies every flag that was set
func (s *CLISource) LoadInto(cfg *schema.Root) error {
	o := s.overrides
	if o.LogLevel != nil {
		cfg.Log.Level = *o.LogLevel
	}
	if o.StreamPort != nil {
		cfg.Server.Stream.Port = *o.StreamPort
	}
	if o.DatagramPort != nil {
		cfg.Server.Datagram.Port = *o.DatagramPort
	}
	if o.Protocol != nil {
		cfg.Server.Stream.Protocol = *o.Protocol
	}
	if o.HTTPEnabled != nil {
		cfg.HTTP.Enabled = *o.HTTPEnabled
	}
	if o.HTTPListen != nil {
		cfg.HTTP.Listen = *o.HTTPListen
	}
	return nil
}
