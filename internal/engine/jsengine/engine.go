// Package jsengine builds call graphs for JavaScript programs and HTML pages.
package jsengine

import (
	"context"
	"log/slog"

	"github.com/abramin/calledges/internal/graph"
)

// Options configures the JavaScript engine.
type Options struct {
	BaseDir string   // Directory Exclude patterns are relative to
	Exclude []string // Doublestar globs for files that are never loaded
	Logger  *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Engine analyses an entry file together with the embedded runtime model.
type Engine struct {
	opts Options
}

// New creates a JavaScript engine.
func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Name returns "js".
func (e *Engine) Name() string {
	return "js"
}

// Prelude returns the bootstrap files analysed with every program.
func (e *Engine) Prelude() []string {
	return append([]string(nil), bootstrapFiles...)
}

// Build loads entry and every script it pulls in, then computes the call graph.
func (e *Engine) Build(ctx context.Context, entry string) (*graph.Graph, error) {
	l := newLoader(e.opts)
	defer l.close()

	if err := l.loadBootstrap(ctx); err != nil {
		return nil, err
	}
	if _, err := l.loadEntry(ctx, entry); err != nil {
		return nil, err
	}

	a := newAnalyzer(e.opts.logger())
	for _, f := range l.files {
		a.collectFile(f)
	}
	if err := a.solve(ctx); err != nil {
		return nil, err
	}

	g := a.buildGraph()
	e.opts.logger().Debug("javascript call graph built",
		"files", len(l.files),
		"functions", len(a.funcs),
		"nodes", g.Len(),
		"edges", g.EdgeCount(),
	)
	return g, nil
}
