package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/abramin/calledges/internal/graph"
)

func TestSelect(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"app.js", "page.HTML", "mod.mjs", "main.go", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		engine  string
		entry   string
		want    string
		wantErr error
	}{
		{"javascript by extension", "auto", "app.js", "js", nil},
		{"html is case insensitive", "", "page.HTML", "js", nil},
		{"es module", "auto", "mod.mjs", "js", nil},
		{"go file", "auto", "main.go", "go", nil},
		{"directory means go", "auto", ".", "go", nil},
		{"explicit engine wins", "js", "notes.txt", "js", nil},
		{"unknown extension", "auto", "notes.txt", "", ErrUnsupportedEntry},
		{"unknown engine", "python", "app.js", "", ErrUnsupportedEntry},
		{"js needs a file", "js", ".", "", ErrUnsupportedEntry},
		{"missing entry", "auto", "missing.js", "", ErrEntryNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Select(tt.engine, filepath.Join(dir, tt.entry), Options{})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Select error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			if e.Name() != tt.want {
				t.Errorf("engine = %s, want %s", e.Name(), tt.want)
			}
		})
	}
}

type nilEngine struct{}

func (nilEngine) Name() string      { return "nil" }
func (nilEngine) Prelude() []string { return nil }
func (nilEngine) Build(context.Context, string) (*graph.Graph, error) {
	return nil, nil
}

type failingEngine struct{ err error }

func (f failingEngine) Name() string      { return "failing" }
func (f failingEngine) Prelude() []string { return nil }
func (f failingEngine) Build(context.Context, string) (*graph.Graph, error) {
	return nil, f.err
}

func TestBuild(t *testing.T) {
	if _, err := Build(context.Background(), nilEngine{}, "x"); !errors.Is(err, ErrNoGraph) {
		t.Errorf("expected ErrNoGraph, got %v", err)
	}

	cause := errors.New("boom")
	if _, err := Build(context.Background(), failingEngine{err: cause}, "x"); !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}
