// Package config provides loading and parsing of emb3d.yaml configuration files.
// A configuration locates the mapping sources and pages of a knowledge-base
// checkout and controls how the bundle is written.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/emb3d/discover"
)

// Default locations, relative to the base directory.
const (
	DefaultBaseDir     = "emb3d"
	DefaultMitigations = "_data/mitigations_threat_mappings.json"
	DefaultProperties  = "_data/properties_threat_mappings.json"
	DefaultThreats     = "_data/threats_properties_mitigations_mappings.json"
	DefaultOutput      = "OUT/out_stix.json"
)

// ErrInvalidConfig indicates a configuration value is malformed.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents an emb3d.yaml configuration file.
type Config struct {
	// BaseDir is the knowledge-base checkout. Relative source and document
	// paths are resolved against it.
	BaseDir string `yaml:"base_dir,omitempty"`

	Sources   *SourcesConfig   `yaml:"sources,omitempty"`
	Documents *DocumentsConfig `yaml:"documents,omitempty"`

	// Output is the bundle file. Relative paths are resolved against the
	// working directory.
	Output string `yaml:"output,omitempty"`

	Identity *IdentityConfig `yaml:"identity,omitempty"`
	IDs      *IDsConfig      `yaml:"ids,omitempty"`
	Log      *LogConfig      `yaml:"log,omitempty"`
	Trace    *TraceConfig    `yaml:"trace,omitempty"`
}

// SourcesConfig locates the three mapping sources.
type SourcesConfig struct {
	Mitigations string `yaml:"mitigations,omitempty"`
	Properties  string `yaml:"properties,omitempty"`
	Threats     string `yaml:"threats,omitempty"`
}

// DocumentsConfig controls page discovery and enrichment.
type DocumentsConfig struct {
	// Root is the directory walked for pages. Default: the base directory.
	Root string `yaml:"root,omitempty"`

	// Select is a CEL predicate deciding which pages belong to a set.
	// Default: discover.DefaultPredicate.
	Select string `yaml:"select,omitempty"`

	// Sets overrides the threat and mitigation document sets.
	Sets []DocumentSet `yaml:"sets,omitempty"`

	// KeepComplianceMappings stores the IEC 62443 mapping section instead of
	// discarding it.
	KeepComplianceMappings bool `yaml:"keep_compliance_mappings,omitempty"`
}

// DocumentSet configures one document set.
type DocumentSet struct {
	Kind       string `yaml:"kind"`
	Type       string `yaml:"type"`
	Code       string `yaml:"code"`
	KeyElement string `yaml:"key_element"`
	Query      string `yaml:"query"`
}

// IdentityConfig overrides the identity that authors the bundle.
type IdentityConfig struct {
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// IDsConfig controls identifier minting.
type IDsConfig struct {
	// Deterministic mints name-based UUIDs so repeated runs over the same input
	// produce the same identifiers.
	Deterministic bool `yaml:"deterministic,omitempty"`

	// Namespace is the UUID namespace of deterministic identifiers.
	Namespace string `yaml:"namespace,omitempty"`
}

// LogConfig controls the log handler built by the CLI.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level,omitempty"`

	// Format is json or text. Default: text
	Format string `yaml:"format,omitempty"`
}

// TraceConfig controls span export.
type TraceConfig struct {
	// Stdout exports spans as JSON to standard output.
	Stdout bool `yaml:"stdout,omitempty"`
}

// Default returns an empty configuration; every accessor yields its default.
func Default() *Config {
	return &Config{}
}

// GetBaseDir returns the base directory or the default value.
func (c *Config) GetBaseDir() string {
	if c == nil || c.BaseDir == "" {
		return DefaultBaseDir
	}
	return c.BaseDir
}

// Resolve joins a relative path to the base directory.
func (c *Config) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.GetBaseDir(), path)
}

// MitigationsPath returns the resolved mitigation mapping source.
func (c *Config) MitigationsPath() string {
	var s *SourcesConfig
	if c != nil {
		s = c.Sources
	}
	return c.Resolve(s.GetMitigations())
}

// PropertiesPath returns the resolved property mapping source.
func (c *Config) PropertiesPath() string {
	var s *SourcesConfig
	if c != nil {
		s = c.Sources
	}
	return c.Resolve(s.GetProperties())
}

// ThreatsPath returns the resolved threat mapping source.
func (c *Config) ThreatsPath() string {
	var s *SourcesConfig
	if c != nil {
		s = c.Sources
	}
	return c.Resolve(s.GetThreats())
}

// DocumentsRoot returns the resolved page root.
func (c *Config) DocumentsRoot() string {
	if c == nil || c.Documents == nil || c.Documents.Root == "" {
		return c.GetBaseDir()
	}
	return c.Resolve(c.Documents.Root)
}

// GetOutput returns the bundle path or the default value.
func (c *Config) GetOutput() string {
	if c == nil || c.Output == "" {
		return DefaultOutput
	}
	return c.Output
}

// GetMitigations returns the mitigation source path or the default value.
func (s *SourcesConfig) GetMitigations() string {
	if s == nil || s.Mitigations == "" {
		return DefaultMitigations
	}
	return s.Mitigations
}

// GetProperties returns the property source path or the default value.
func (s *SourcesConfig) GetProperties() string {
	if s == nil || s.Properties == "" {
		return DefaultProperties
	}
	return s.Properties
}

// GetThreats returns the threat source path or the default value.
func (s *SourcesConfig) GetThreats() string {
	if s == nil || s.Threats == "" {
		return DefaultThreats
	}
	return s.Threats
}

// GetSelect returns the page selection predicate or the default value.
func (d *DocumentsConfig) GetSelect() string {
	if d == nil || strings.TrimSpace(d.Select) == "" {
		return discover.DefaultPredicate
	}
	return d.Select
}

// GetSets returns the configured document sets, or discover.DefaultSets().
func (d *DocumentsConfig) GetSets() []discover.Set {
	if d == nil || len(d.Sets) == 0 {
		return discover.DefaultSets()
	}
	sets := make([]discover.Set, 0, len(d.Sets))
	for _, s := range d.Sets {
		sets = append(sets, discover.Set{
			Kind:       s.Kind,
			Type:       s.Type,
			Code:       s.Code,
			KeyElement: s.KeyElement,
			Query:      s.Query,
		})
	}
	return sets
}

// GetKeepComplianceMappings reports whether compliance mappings are stored.
func (d *DocumentsConfig) GetKeepComplianceMappings() bool {
	return d != nil && d.KeepComplianceMappings
}

// GetName returns the identity name, or "" for the EMB3D default.
func (i *IdentityConfig) GetName() string {
	if i == nil {
		return ""
	}
	return i.Name
}

// GetDescription returns the identity description, or "" for the EMB3D default.
func (i *IdentityConfig) GetDescription() string {
	if i == nil {
		return ""
	}
	return i.Description
}

// IsDeterministic reports whether deterministic identifiers are enabled.
func (i *IDsConfig) IsDeterministic() bool {
	return i != nil && i.Deterministic
}

// GetNamespace parses the namespace. An unset namespace yields uuid.Nil.
func (i *IDsConfig) GetNamespace() (uuid.UUID, error) {
	if i == nil || i.Namespace == "" {
		return uuid.Nil, nil
	}
	ns, err := uuid.Parse(i.Namespace)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: ids.namespace: %v", ErrInvalidConfig, err)
	}
	return ns, nil
}

// GetLevel parses the log level. Returns slog.LevelInfo if not set or invalid.
func (l *LogConfig) GetLevel() slog.Level {
	if l == nil || l.Level == "" {
		return slog.LevelInfo
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// GetFormat returns the log format or the default value.
func (l *LogConfig) GetFormat() string {
	if l == nil || l.Format == "" {
		return "text"
	}
	return strings.ToLower(l.Format)
}

// IsStdout reports whether spans are exported to standard output.
func (t *TraceConfig) IsStdout() bool {
	return t != nil && t.Stdout
}

// Validate checks the configuration. Every problem is reported, each wrapping
// ErrInvalidConfig.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Log != nil {
		if c.Log.Level != "" {
			var level slog.Level
			if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
				invalid("log.level %q", c.Log.Level)
			}
		}
		if f := c.Log.GetFormat(); f != "json" && f != "text" {
			invalid("log.format %q must be json or text", c.Log.Format)
		}
	}
	if _, err := c.IDs.GetNamespace(); err != nil {
		errs = append(errs, err)
	}
	if c.Documents != nil {
		if _, err := discover.NewSelector(c.Documents.Select); err != nil {
			invalid("documents.select: %v", err)
		}
		for i, s := range c.Documents.Sets {
			if s.Kind == "" || s.Type == "" || s.Code == "" || s.KeyElement == "" || s.Query == "" {
				invalid("documents.sets[%d] needs kind, type, code, key_element and query", i)
			}
		}
	}
	return errors.Join(errs...)
}

// Load reads and parses an emb3d.yaml file from the given path.
// If the path is a directory, it looks for emb3d.yaml or emb3d.yml in that directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		configPath = ""
		for _, name := range []string{"emb3d.yaml", "emb3d.yml"} {
			candidate := filepath.Join(path, name)
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
				break
			}
		}
		if configPath == "" {
			return nil, fmt.Errorf("no emb3d.yaml or emb3d.yml found in %s", path)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, configPath, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
