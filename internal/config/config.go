package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the calledges configuration.
type Config struct {
	BaseDir    string           `yaml:"base_dir"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Engine     EngineConfig     `yaml:"engine"`
	Output     OutputConfig     `yaml:"output"`
	Store      StoreConfig      `yaml:"store"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ClassifierConfig overrides the engine's naming table.
// Empty fields keep the engine defaults.
type ClassifierConfig struct {
	Sentinel         string   `yaml:"sentinel"`
	PreludeFiles     []string `yaml:"prelude_files"`
	SyntheticMarkers []string `yaml:"synthetic_markers"`
	FunctionSelector string   `yaml:"function_selector"`
}

// EngineConfig selects and tunes the analysis engine.
type EngineConfig struct {
	Name    string   `yaml:"name"`    // auto, js, go
	Exclude []string `yaml:"exclude"` // doublestar globs relative to the base dir
	Go      GoConfig `yaml:"go"`
}

// GoConfig tunes the Go engine.
type GoConfig struct {
	Algorithm string `yaml:"algorithm"` // cha, static, vta
	Tests     bool   `yaml:"tests"`
}

// OutputConfig controls the JSON document.
type OutputConfig struct {
	Indent bool   `yaml:"indent"`
	Path   string `yaml:"path"` // empty writes to stdout
}

// StoreConfig controls the optional SQLite export.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a Config whose behavior matches a run without any configuration.
func Default() *Config {
	return &Config{
		Classifier: ClassifierConfig{
			Sentinel:         "L",
			SyntheticMarkers: []string{"/make_node"},
			FunctionSelector: "do",
		},
		Engine: EngineConfig{
			Name:    "auto",
			Exclude: []string{"**/node_modules/**", "**/*.min.js"},
			Go: GoConfig{
				Algorithm: "cha",
			},
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// Load reads configuration from configPath on top of the defaults.
// An empty path returns the defaults; a path that does not exist is an error.
func Load(configPath string) (*Config, error) {
	defaults := Default()
	if configPath == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", configPath, err)
	}

	defaults.Merge(&fileCfg)
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return defaults, nil
}

// Merge combines another config into this one, with other taking precedence.
// Lists replace the defaults entirely rather than appending.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.BaseDir != "" {
		c.BaseDir = other.BaseDir
	}
	if other.Classifier.Sentinel != "" {
		c.Classifier.Sentinel = other.Classifier.Sentinel
	}
	if len(other.Classifier.PreludeFiles) > 0 {
		c.Classifier.PreludeFiles = other.Classifier.PreludeFiles
	}
	if len(other.Classifier.SyntheticMarkers) > 0 {
		c.Classifier.SyntheticMarkers = other.Classifier.SyntheticMarkers
	}
	if other.Classifier.FunctionSelector != "" {
		c.Classifier.FunctionSelector = other.Classifier.FunctionSelector
	}
	if other.Engine.Name != "" {
		c.Engine.Name = other.Engine.Name
	}
	if len(other.Engine.Exclude) > 0 {
		c.Engine.Exclude = other.Engine.Exclude
	}
	if other.Engine.Go.Algorithm != "" {
		c.Engine.Go.Algorithm = other.Engine.Go.Algorithm
	}
	if other.Engine.Go.Tests {
		c.Engine.Go.Tests = true
	}
	if other.Output.Indent {
		c.Output.Indent = true
	}
	if other.Output.Path != "" {
		c.Output.Path = other.Output.Path
	}
	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch c.Engine.Name {
	case "auto", "js", "go":
	default:
		return fmt.Errorf("unknown engine %q", c.Engine.Name)
	}
	switch c.Engine.Go.Algorithm {
	case "cha", "static", "vta":
	default:
		return fmt.Errorf("unknown go call graph algorithm %q", c.Engine.Go.Algorithm)
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns the configured log level, defaulting to warn.
func (l LoggingConfig) SlogLevel() slog.Level {
	level, err := parseLevel(l.Level)
	if err != nil {
		return slog.LevelWarn
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("unknown log level %q", s)
	}
}
