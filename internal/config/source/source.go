// Package source provides configuration source abstractions and implementations
package source

import (
	"bwgen/internal/config/schema"
)

// Source is the interface for configuration sources
// Each source loads configuration into a strongly-typed Root structure
type Source interface {
	// Name returns the source name for logging and error messages
	Name() string

	// Priority returns the source priority (higher = more important)
	// Priority order:
	// 1 - Default values (lowest)
	// 2 - YAML files
	// 3 - Environment variables
	// 4 - CLI flags (highest)
	Priority() int

	// LoadInto loads configuration into the provided config structure
	// Only values present in the source are set, preserving lower-priority values
	LoadInto(cfg *schema.Root) error
}

// SourcePriority constants
const (
	PriorityDefaults = 1
	PriorityYAML     = 2
	PriorityEnv      = 3
	PriorityCLI      = 4
)
