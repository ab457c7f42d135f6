package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"bwgen/internal/config/schema"
	coreerrors "bwgen/internal/core/errors"
)

// YAMLSource loads configuration from YAML files
type YAMLSource struct {
	paths []string // list of YAML file paths to load
}

// NewYAMLSource creates a new YAMLSource with the specified file paths
func NewYAMLSource(paths ...string) *YAMLSource {
	return &YAMLSource{
		paths: paths,
	}
}

// Name returns the source name
func (s *YAMLSource) Name() string {
	return "yaml"
}

// Priority returns the source priority
func (s *YAMLSource) Priority() int {
	return PriorityYAML
}

// LoadInto loads YAML configuration into the config structure
// Files are loaded in order, with later files overriding earlier ones
func (s *YAMLSource) LoadInto(cfg *schema.Root) error {
	for _, path := range s.paths {
		if path == "" {
			continue
		}

		expandedPath, err := expandPath(path)
		if err != nil {
			return coreerrors.Wrapf(err, coreerrors.CodeInvalidParam, "failed to expand path %q", path)
		}

		if _, err := os.Stat(expandedPath); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(expandedPath)
		if err != nil {
			return coreerrors.Wrapf(err, coreerrors.CodeConfigError, "failed to read config file %q", expandedPath)
		}

		if err := decodeStrict(data, cfg); err != nil {
			return coreerrors.Wrapf(err, coreerrors.CodeInvalidParam, "failed to parse YAML file %q", expandedPath)
		}
	}

	return nil
}

// decodeStrict rejects keys that do not map to a schema field, so a typo such
// as "max_conections" fails loudly instead of silently keeping the default.
// An empty document leaves cfg untouched.
func decodeStrict(data []byte, cfg *schema.Root) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// FindConfigFile searches for a configuration file in standard locations
// Returns the first found file path, or empty string if none found
func FindConfigFile(configFile string) string {
	if configFile != "" {
		expanded, err := expandPath(configFile)
		if err == nil {
			if _, err := os.Stat(expanded); err == nil {
				return expanded
			}
		}
		return configFile
	}

	searchPaths := []string{
		"./bwgen.yaml",
		"./config.yaml",
	}
	if execPath, err := os.Executable(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(filepath.Dir(execPath), "bwgen.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/bwgen/config.yaml")

	for _, path := range searchPaths {
		expanded, err := expandPath(path)
		if err != nil {
			continue
		}
		if _, err := os.Stat(expanded); err == nil {
			return expanded
		}
	}

	return ""
}

// expandPath expands ~ to user home directory
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[1:])
	}

	return filepath.Clean(path), nil
}
