// Package loader provides multi-source configuration loading
package loader

import (
	"cmp"
	"os"
	"slices"

	"bwgen/internal/config/schema"
	"bwgen/internal/config/source"
	coreerrors "bwgen/internal/core/errors"
)

// EnvPrefix is the environment variable prefix used by Load
const EnvPrefix = "BWGEN"

// Loader loads configuration from multiple sources in priority order
type Loader struct {
	sources    []source.Source
	applied    []string
	configFile string
}

// NewLoader creates a new Loader
func NewLoader() *Loader {
	return &Loader{
		sources: make([]source.Source, 0),
	}
}

// AddSource adds a configuration source
func (l *Loader) AddSource(s source.Source) {
	l.sources = append(l.sources, s)
}

// Applied returns the names of the sources used by the last Load, in order
func (l *Loader) Applied() []string {
	return l.applied
}

// ConfigFile returns the YAML file selected by the builder, if any
func (l *Loader) ConfigFile() string {
	return l.configFile
}

// Load loads configuration from all sources in priority order
// Lower priority sources are loaded first, then higher priority sources override
func (l *Loader) Load() (*schema.Root, error) {
	if len(l.sources) == 0 {
		return nil, coreerrors.New(coreerrors.CodeInvalidParam, "no configuration sources registered")
	}

	sorted := slices.Clone(l.sources)
	slices.SortStableFunc(sorted, func(a, b source.Source) int {
		return cmp.Compare(a.Priority(), b.Priority())
	})

	cfg := &schema.Root{}
	l.applied = l.applied[:0]
	for _, s := range sorted {
		if err := s.LoadInto(cfg); err != nil {
			return nil, coreerrors.Wrapf(err, coreerrors.CodeConfigError,
				"failed to load configuration from source %s", s.Name())
		}
		l.applied = append(l.applied, s.Name())
	}

	return cfg, nil
}

// LoaderBuilder helps build a Loader with common configurations
type LoaderBuilder struct {
	loader     *Loader
	prefix     string
	configFile string
	cli        *source.CLIOverrides
}

// NewLoaderBuilder creates a new LoaderBuilder
func NewLoaderBuilder() *LoaderBuilder {
	return &LoaderBuilder{
		loader: NewLoader(),
		prefix: EnvPrefix,
	}
}

// WithPrefix sets the environment variable prefix
func (b *LoaderBuilder) WithPrefix(prefix string) *LoaderBuilder {
	b.prefix = prefix
	return b
}

// WithConfigFile sets the configuration file path
func (b *LoaderBuilder) WithConfigFile(path string) *LoaderBuilder {
	b.configFile = path
	return b
}

// WithCLI adds command-line overrides as the highest priority source
func (b *LoaderBuilder) WithCLI(overrides source.CLIOverrides) *LoaderBuilder {
	b.cli = &overrides
	return b
}

// Build creates the configured Loader
func (b *LoaderBuilder) Build() *Loader {
	b.loader.AddSource(source.NewDefaultSource())

	if configFile := source.FindConfigFile(b.configFile); configFile != "" {
		b.loader.AddSource(source.NewYAMLSource(configFile))
		b.loader.configFile = configFile
	}

	b.loader.AddSource(source.NewEnvSource(b.prefix))

	if b.cli != nil {
		b.loader.AddSource(source.NewCLISource(*b.cli))
	}

	return b.loader
}

// Load is a convenience function that creates a loader and loads configuration
// An explicitly named config file must exist
func Load(configFile string, overrides source.CLIOverrides) (*schema.Root, *Loader, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, nil, coreerrors.Wrapf(err, coreerrors.CodeConfigError, "config file %q not readable", configFile)
		}
	}

	l := NewLoaderBuilder().
		WithConfigFile(configFile).
		WithCLI(overrides).
		Build()

	cfg, err := l.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, l, nil
}
