// Package runner wires an engine, the edge extractor and the output sinks together.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/abramin/calledges/internal/config"
	"github.com/abramin/calledges/internal/edges"
	"github.com/abramin/calledges/internal/engine"
	"github.com/abramin/calledges/internal/store"
)

// Runner coordinates one extraction.
type Runner struct {
	cfg      *config.Config
	logger   *slog.Logger
	progress io.Writer
}

// New creates a runner. A nil logger uses slog.Default().
func New(cfg *config.Config, logger *slog.Logger) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, logger: logger}
}

// SetProgressOutput enables a progress bar on w while edges are extracted.
func (r *Runner) SetProgressOutput(w io.Writer) {
	r.progress = w
}

// Result holds the outcome of a run.
type Result struct {
	Entry    string
	BaseDir  string
	Engine   string
	Edges    []edges.Edge
	Stats    edges.Stats
	RunID    store.RunID // zero when no store is configured
	Duration time.Duration
}

// Run builds the call graph for entry and extracts its edges.
// The base directory defaults to the entry's parent directory.
func (r *Runner) Run(ctx context.Context, entry string) (*Result, error) {
	start := time.Now()

	absEntry, err := filepath.Abs(entry)
	if err != nil {
		return nil, fmt.Errorf("resolving entry %s: %w", entry, err)
	}
	baseDir, err := r.baseDir(absEntry)
	if err != nil {
		return nil, err
	}

	eng, err := engine.Select(r.cfg.Engine.Name, absEntry, engine.Options{
		BaseDir:     baseDir,
		Exclude:     r.cfg.Engine.Exclude,
		GoAlgorithm: r.cfg.Engine.Go.Algorithm,
		GoTests:     r.cfg.Engine.Go.Tests,
		Logger:      r.logger,
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("building call graph", "entry", absEntry, "engine", eng.Name(), "base_dir", baseDir)
	g, err := engine.Build(ctx, eng, absEntry)
	if err != nil {
		return nil, err
	}

	table := ClassifierTable(r.cfg.Classifier, eng.Prelude())
	bar := r.newProgress()
	extractor := edges.NewExtractor(edges.NewClassifier(table),
		edges.WithDropHandler(r.logDrop),
		edges.WithProgress(bar.update),
	)
	list, stats := extractor.Extract(g, baseDir)
	bar.finish()

	result := &Result{
		Entry:   absEntry,
		BaseDir: baseDir,
		Engine:  eng.Name(),
		Edges:   list,
		Stats:   stats,
	}

	if r.cfg.Store.Path != "" {
		id, err := r.save(result)
		if err != nil {
			return nil, err
		}
		result.RunID = id
	}

	result.Duration = time.Since(start)
	r.logger.Info("extraction complete",
		"nodes", stats.Nodes,
		"skipped_nodes", stats.SkippedNodes,
		"call_sites", stats.CallSites,
		"edges", stats.Edges,
		"dropped_caller_outside_base", stats.Dropped[edges.DropCallerOutsideBase],
		"dropped_not_real_function", stats.Dropped[edges.DropNotRealFunction],
		"dropped_callee_outside_base", stats.Dropped[edges.DropCalleeOutsideBase],
		"duration", result.Duration,
	)
	return result, nil
}

func (r *Runner) baseDir(absEntry string) (string, error) {
	if r.cfg.BaseDir != "" {
		dir, err := filepath.Abs(r.cfg.BaseDir)
		if err != nil {
			return "", fmt.Errorf("resolving base dir %s: %w", r.cfg.BaseDir, err)
		}
		return dir, nil
	}
	if info, err := os.Stat(absEntry); err == nil && info.IsDir() {
		return absEntry, nil
	}
	return filepath.Dir(absEntry), nil
}

// ClassifierTable builds the classifier table from configuration, using the
// engine prelude unless the configuration lists its own.
func ClassifierTable(cfg config.ClassifierConfig, prelude []string) edges.Table {
	t := edges.DefaultTable(prelude)
	if cfg.Sentinel != "" {
		t.Sentinel = cfg.Sentinel
	}
	if len(cfg.PreludeFiles) > 0 {
		t.PreludeFiles = cfg.PreludeFiles
	}
	if len(cfg.SyntheticMarkers) > 0 {
		t.SyntheticMarkers = cfg.SyntheticMarkers
	}
	if cfg.FunctionSelector != "" {
		t.FunctionSelector = cfg.FunctionSelector
	}
	return t
}

func (r *Runner) logDrop(d edges.Drop) {
	if !r.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs := []any{"reason", string(d.Reason), "caller", d.Caller.String()}
	if d.Target != nil {
		attrs = append(attrs, "target", d.Target.String())
	}
	if d.Position != nil {
		attrs = append(attrs, "url", d.Position.URL, "start", d.Position.Start, "end", d.Position.End)
	}
	r.logger.Debug("dropped edge", attrs...)
}

func (r *Runner) save(result *Result) (store.RunID, error) {
	st, err := store.Open(r.cfg.Store.Path)
	if err != nil {
		return 0, fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	rows := make([]store.Edge, len(result.Edges))
	for i, e := range result.Edges {
		rows[i] = store.Edge{
			Caller: store.Span{File: e.Caller.File, Start: e.Caller.Range[0], End: e.Caller.Range[1]},
			Callee: store.Span{File: e.Callee.File, Start: e.Callee.Range[0], End: e.Callee.Range[1]},
		}
	}

	id, err := st.SaveRun(&store.Run{
		Entry:   result.Entry,
		BaseDir: result.BaseDir,
		Engine:  result.Engine,
	}, rows)
	if err != nil {
		return 0, fmt.Errorf("saving run: %w", err)
	}
	totals, err := st.GetStats()
	if err != nil {
		return 0, fmt.Errorf("reading store stats: %w", err)
	}
	r.logger.Info("stored edges",
		"db", st.DBPath(),
		"run", id,
		"edges", len(rows),
		"total_runs", totals.RunCount,
		"total_edges", totals.EdgeCount,
	)
	return id, nil
}

// progress adapts extractor callbacks to a progress bar created on the first report.
type progress struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func (r *Runner) newProgress() *progress {
	return &progress{w: r.progress}
}

func (p *progress) update(current, total int) {
	if p.w == nil {
		return
	}
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("Extracting edges"),
			progressbar.OptionClearOnFinish(),
		)
	}
	p.bar.Set(current)
}

func (p *progress) finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
