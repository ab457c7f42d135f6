package schema

import "time"

// HTTPConfig configures the optional HTTP side service
type HTTPConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	Listen         string        `yaml:"listen" json:"listen"`
	Filler         string        `yaml:"filler" json:"filler"`
	MaxBytes       int64         `yaml:"max_bytes" json:"max_bytes"`               // ceiling for /data and /file
	MaxUploadBytes int64         `yaml:"max_upload_bytes" json:"max_upload_bytes"` // ceiling for log uploads
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"`
}
