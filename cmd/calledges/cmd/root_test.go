package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeEntry(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	entry := filepath.Join(dir, "main.js")
	if err := os.WriteFile(entry, []byte("function a(){ b(); } function b(){} a();"), 0644); err != nil {
		t.Fatal(err)
	}
	return dir, entry
}

func TestMissingEntryPrintsUsage(t *testing.T) {
	stdout, _, err := execute(t)
	if !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if strings.TrimSpace(stdout) != usage {
		t.Errorf("stdout = %q, want %q", stdout, usage)
	}
}

func TestWritesEdgesToStdout(t *testing.T) {
	_, entry := writeEntry(t)

	stdout, stderr, err := execute(t, entry)
	if err != nil {
		t.Fatalf("execute: %v (stderr: %s)", err, stderr)
	}

	want := `[{"caller":{"file":"main.js","range":[36,39]},"callee":{"file":"main.js","range":[0,20]}},` +
		`{"caller":{"file":"main.js","range":[14,17]},"callee":{"file":"main.js","range":[21,35]}}]` + "\n"
	if stdout != want {
		t.Errorf("stdout =\n%s\nwant\n%s", stdout, want)
	}
}

func TestOutputFileAndDatabase(t *testing.T) {
	dir, entry := writeEntry(t)
	out := filepath.Join(dir, "edges.json")
	db := filepath.Join(dir, "db", "edges.db")

	stdout, stderr, err := execute(t, entry, "--out", out, "--db", db, "--indent")
	if err != nil {
		t.Fatalf("execute: %v (stderr: %s)", err, stderr)
	}
	if stdout != "" {
		t.Errorf("expected nothing on stdout, got %q", stdout)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(data), "\n  {") {
		t.Errorf("expected indented output, got %s", data)
	}
	if _, err := os.Stat(db); err != nil {
		t.Errorf("expected database at %s: %v", db, err)
	}
}

func TestConfigFile(t *testing.T) {
	dir, entry := writeEntry(t)
	cfgPath := filepath.Join(dir, "calledges.yaml")
	if err := os.WriteFile(cfgPath, []byte("base_dir: /nowhere\n"), 0644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := execute(t, entry, "--config", cfgPath)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(stdout) != "[]" {
		t.Errorf("expected no edges outside the configured base dir, got %s", stdout)
	}

	stdout, _, err = execute(t, entry, "--config", cfgPath, "--base-dir", dir)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(stdout) == "[]" {
		t.Error("expected --base-dir to override the config file")
	}

	if _, _, err := execute(t, entry, "--config", filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for a missing config file")
	}
}

func TestVerboseLogsToStderr(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "main.js")
	if err := os.WriteFile(entry, []byte("setTimeout(function tick() {}, 0);\n"), 0644); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, err := execute(t, entry, "--verbose")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(stdout) != "[]" {
		t.Errorf("expected empty edge list, got %s", stdout)
	}
	if !strings.Contains(stderr, "dropped edge") {
		t.Errorf("expected dropped edges on stderr, got %s", stderr)
	}
}

func TestFailures(t *testing.T) {
	dir := t.TempDir()

	if _, _, err := execute(t, filepath.Join(dir, "missing.js")); err == nil {
		t.Error("expected error for missing entry")
	}

	bad := filepath.Join(dir, "bad.js")
	if err := os.WriteFile(bad, []byte("function ( {"), 0644); err != nil {
		t.Fatal(err)
	}
	stdout, _, err := execute(t, bad)
	if err == nil {
		t.Error("expected error for unparsable entry")
	}
	if stdout != "" {
		t.Errorf("expected no JSON on failure, got %q", stdout)
	}

	if _, _, err := execute(t, bad, "--engine", "cobol"); err == nil {
		t.Error("expected error for unknown engine")
	}
}
