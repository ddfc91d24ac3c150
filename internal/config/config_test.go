package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Classifier.Sentinel != "L" {
		t.Errorf("expected sentinel L, got %q", cfg.Classifier.Sentinel)
	}
	if len(cfg.Classifier.SyntheticMarkers) != 1 || cfg.Classifier.SyntheticMarkers[0] != "/make_node" {
		t.Errorf("unexpected synthetic markers: %v", cfg.Classifier.SyntheticMarkers)
	}
	if len(cfg.Classifier.PreludeFiles) != 0 {
		t.Error("expected prelude files to come from the engine by default")
	}
	if cfg.Engine.Name != "auto" {
		t.Errorf("expected auto engine, got %q", cfg.Engine.Name)
	}
	if cfg.Engine.Go.Algorithm != "cha" {
		t.Errorf("expected cha algorithm, got %q", cfg.Engine.Go.Algorithm)
	}
	if cfg.Output.Indent {
		t.Error("expected compact output by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error for empty path, got: %v", err)
	}
	if cfg.Engine.Name != "auto" {
		t.Error("expected defaults")
	}
}

func TestLoadNonExistent(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for an explicit missing config file")
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
base_dir: /srv/site
classifier:
  prelude_files:
    - runtime.js
  synthetic_markers:
    - "/make_node"
    - "/__stub"
engine:
  name: js
  exclude:
    - "**/vendor/**"
output:
  indent: true
store:
  path: edges.db
logging:
  level: debug
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "calledges.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.BaseDir != "/srv/site" {
		t.Errorf("expected base dir /srv/site, got %s", cfg.BaseDir)
	}
	if len(cfg.Classifier.PreludeFiles) != 1 || cfg.Classifier.PreludeFiles[0] != "runtime.js" {
		t.Errorf("unexpected prelude files: %v", cfg.Classifier.PreludeFiles)
	}
	if len(cfg.Classifier.SyntheticMarkers) != 2 {
		t.Errorf("expected 2 synthetic markers, got %d", len(cfg.Classifier.SyntheticMarkers))
	}
	if cfg.Classifier.Sentinel != "L" {
		t.Errorf("expected default sentinel to survive, got %q", cfg.Classifier.Sentinel)
	}
	if cfg.Engine.Name != "js" {
		t.Errorf("expected js engine, got %s", cfg.Engine.Name)
	}
	if len(cfg.Engine.Exclude) != 1 {
		t.Errorf("expected exclude list to be replaced, got %v", cfg.Engine.Exclude)
	}
	if cfg.Engine.Go.Algorithm != "cha" {
		t.Errorf("expected default algorithm to survive, got %s", cfg.Engine.Go.Algorithm)
	}
	if !cfg.Output.Indent {
		t.Error("expected indent to be enabled")
	}
	if cfg.Store.Path != "edges.db" {
		t.Errorf("expected store path edges.db, got %s", cfg.Store.Path)
	}
	if cfg.Logging.SlogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.Logging.SlogLevel())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"engine", "engine:\n  name: python\n"},
		{"algorithm", "engine:\n  go:\n    algorithm: pointer\n"},
		{"log level", "logging:\n  level: chatty\n"},
		{"yaml", "engine: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "calledges.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelWarn},
	}

	for _, tt := range tests {
		got := LoggingConfig{Level: tt.level}.SlogLevel()
		if got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
