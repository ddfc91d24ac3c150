// Package engine selects the call-graph engine for an entry file.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/abramin/calledges/internal/engine/goengine"
	"github.com/abramin/calledges/internal/engine/jsengine"
	"github.com/abramin/calledges/internal/graph"
)

var (
	// ErrEntryNotFound is returned when the entry file does not exist.
	ErrEntryNotFound = errors.New("entry file not found")
	// ErrUnsupportedEntry is returned when no engine handles the entry.
	ErrUnsupportedEntry = errors.New("unsupported entry file")
	// ErrNoGraph is returned when an engine produced no graph.
	ErrNoGraph = errors.New("engine produced no call graph")
)

// Engine builds a call graph for an entry file.
type Engine interface {
	// Name identifies the engine in logs and stored runs.
	Name() string
	// Prelude lists the bootstrap files the engine injects into every analysis.
	Prelude() []string
	// Build analyses entry and everything it loads.
	Build(ctx context.Context, entry string) (*graph.Graph, error)
}

// Options configures the engines.
type Options struct {
	BaseDir     string   // Directory exclusion globs are relative to
	Exclude     []string // Doublestar globs for files the JS engine must not load
	GoAlgorithm string   // cha, static, vta
	GoTests     bool     // Include test packages in Go analysis
	Logger      *slog.Logger
}

var jsExtensions = map[string]bool{
	".js":   true,
	".mjs":  true,
	".cjs":  true,
	".html": true,
	".htm":  true,
}

// Select returns the engine named by name, or picks one from entry when name is "auto" or empty.
func Select(name, entry string, opts Options) (Engine, error) {
	info, err := os.Stat(entry)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entry)
		}
		return nil, fmt.Errorf("checking entry %s: %w", entry, err)
	}

	if name == "" || name == "auto" {
		name, err = detect(entry, info.IsDir())
		if err != nil {
			return nil, err
		}
	}

	switch name {
	case "js":
		if info.IsDir() {
			return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupportedEntry, entry)
		}
		return jsengine.New(jsengine.Options{
			BaseDir: opts.BaseDir,
			Exclude: opts.Exclude,
			Logger:  opts.Logger,
		}), nil
	case "go":
		return goengine.New(goengine.Options{
			Algorithm: opts.GoAlgorithm,
			Tests:     opts.GoTests,
			Logger:    opts.Logger,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", ErrUnsupportedEntry, name)
	}
}

func detect(entry string, isDir bool) (string, error) {
	if isDir {
		return "go", nil
	}
	ext := strings.ToLower(filepath.Ext(entry))
	switch {
	case jsExtensions[ext]:
		return "js", nil
	case ext == ".go":
		return "go", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedEntry, entry)
	}
}

// Build runs e on entry and checks that a graph came back.
func Build(ctx context.Context, e Engine, entry string) (*graph.Graph, error) {
	g, err := e.Build(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("%s engine: %w", e.Name(), err)
	}
	if g == nil {
		return nil, fmt.Errorf("%s engine: %w", e.Name(), ErrNoGraph)
	}
	return g, nil
}
