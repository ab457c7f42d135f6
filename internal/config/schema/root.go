// Package schema defines configuration structure types
package schema

import "time"

// Root is the top-level configuration structure
type Root struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Payload PayloadConfig `yaml:"payload" json:"payload"`
	HTTP    HTTPConfig    `yaml:"http" json:"http"`
	Log     LogConfig     `yaml:"log" json:"log"`
}

// ServerConfig contains listener configuration
type ServerConfig struct {
	Stream          StreamConfig   `yaml:"stream" json:"stream"`
	Datagram        DatagramConfig `yaml:"datagram" json:"datagram"`
	ShutdownTimeout time.Duration  `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}
