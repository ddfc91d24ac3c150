package goengine

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestLoadTarget(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.go")
	if err := os.WriteFile(file, []byte("package main\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		entry       string
		wantDir     string
		wantPattern string
		wantErr     bool
	}{
		{"file", file, dir, ".", false},
		{"directory", dir, dir, "./...", false},
		{"missing", filepath.Join(dir, "missing.go"), "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotDir, gotPattern, err := loadTarget(tt.entry)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("loadTarget: %v", err)
			}
			if gotDir != tt.wantDir || gotPattern != tt.wantPattern {
				t.Errorf("loadTarget(%q) = (%q, %q), want (%q, %q)", tt.entry, gotDir, gotPattern, tt.wantDir, tt.wantPattern)
			}
		})
	}
}

// TestLoaderOnProject loads the calledges project itself.
func TestLoaderOnProject(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not available")
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}

	// internal/engine/goengine -> project root
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(wd)))
	if _, err := os.Stat(filepath.Join(projectRoot, "go.mod")); os.IsNotExist(err) {
		t.Skip("not running in the calledges project, skipping integration test")
	}

	loader := NewLoader(false)
	if err := loader.Load(context.Background(), filepath.Join(projectRoot, "internal", "graph")); err != nil {
		t.Fatalf("failed to load packages: %v", err)
	}

	pkgs := loader.Packages()
	if len(pkgs) != 1 {
		t.Fatalf("expected one package, got %d", len(pkgs))
	}
	if pkgs[0].PkgPath != "github.com/abramin/calledges/internal/graph" {
		t.Errorf("unexpected package %s", pkgs[0].PkgPath)
	}
	if len(pkgs[0].Syntax) == 0 {
		t.Error("expected parsed syntax")
	}
}
