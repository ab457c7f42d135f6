package schema

// Size units
const (
	UnitB  = "B"
	UnitKB = "KB"
	UnitMB = "MB"
	UnitGB = "GB"
)

// PayloadConfig controls request parsing and filler generation
type PayloadConfig struct {
	ChunkSize       int      `yaml:"chunk_size" json:"chunk_size"`
	Filler          string   `yaml:"filler" json:"filler"`                       // single byte
	Units           []string `yaml:"units" json:"units"`                         // accepted units, largest first
	DefaultUnit     string   `yaml:"default_unit" json:"default_unit"`           // unit for a bare "<size>" line, empty = reject
	ExactBytes      bool     `yaml:"exact_bytes" json:"exact_bytes"`             // trim the last chunk to the exact target
	MaxRequestBytes int64    `yaml:"max_request_bytes" json:"max_request_bytes"` // 0 = unlimited
}
