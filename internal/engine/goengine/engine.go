// Package goengine builds call graphs for Go programs with golang.org/x/tools.
package goengine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abramin/calledges/internal/graph"
)

// Options configures the Go engine.
type Options struct {
	Algorithm string // cha, static, vta
	Tests     bool
	Logger    *slog.Logger
}

// Engine analyses a Go package or module tree.
type Engine struct {
	opts Options
}

// New creates a Go engine.
func New(opts Options) *Engine {
	if opts.Algorithm == "" {
		opts.Algorithm = "cha"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{opts: opts}
}

// Name returns "go".
func (e *Engine) Name() string {
	return "go"
}

// Prelude returns the bootstrap packages every Go program links against.
func (e *Engine) Prelude() []string {
	return []string{"runtime", "internal"}
}

// Build loads entry, builds SSA and converts the call graph.
func (e *Engine) Build(ctx context.Context, entry string) (*graph.Graph, error) {
	loader := NewLoader(e.opts.Tests)
	if err := loader.Load(ctx, entry); err != nil {
		return nil, err
	}
	e.opts.Logger.Debug("loaded go packages", "count", len(loader.Packages()))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	builder := NewCallGraphBuilder(loader, e.opts.Algorithm)
	builder.Build()

	cg, err := builder.CallGraph()
	if err != nil {
		return nil, fmt.Errorf("building call graph: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g := builder.Convert(cg)
	e.opts.Logger.Debug("go call graph built",
		"algorithm", e.opts.Algorithm,
		"nodes", g.Len(),
		"edges", g.EdgeCount(),
	)
	return g, nil
}
