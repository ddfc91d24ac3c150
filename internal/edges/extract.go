// Package edges turns an engine call graph into caller/callee source ranges.
package edges

import (
	"github.com/abramin/calledges/internal/graph"
)

// Edge is one caller -> callee pair. Duplicates are meaningful and are never merged.
type Edge struct {
	Caller FileRange `json:"caller"`
	Callee FileRange `json:"callee"`
}

// DropReason explains why a call site or target produced no edge.
type DropReason string

const (
	DropCallerOutsideBase DropReason = "caller-outside-base" // Call site position not under the base directory
	DropNotRealFunction   DropReason = "not-real-function"   // Resolved target is synthetic or bootstrap code
	DropCalleeOutsideBase DropReason = "callee-outside-base" // Target definition not under the base directory
)

// Drop describes one filtered call site or target.
type Drop struct {
	Reason   DropReason
	Caller   *graph.Method
	Target   *graph.Method // nil for DropCallerOutsideBase
	Position *graph.Position
}

// Stats summarizes one extraction.
type Stats struct {
	Nodes        int                `json:"nodes"`
	SkippedNodes int                `json:"skipped_nodes"`
	CallSites    int                `json:"call_sites"`
	Edges        int                `json:"edges"`
	Dropped      map[DropReason]int `json:"dropped"`
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithDropHandler registers a callback invoked for every filtered call site or target.
func WithDropHandler(fn func(Drop)) Option {
	return func(x *Extractor) {
		x.onDrop = fn
	}
}

// WithProgress registers a callback invoked as nodes are processed.
func WithProgress(fn func(current, total int)) Option {
	return func(x *Extractor) {
		x.onProgress = fn
	}
}

// Extractor walks a call graph once and emits one Edge per surviving (call site, target).
// It keeps no state between calls to Extract.
type Extractor struct {
	classifier *Classifier
	onDrop     func(Drop)
	onProgress func(current, total int)
}

// NewExtractor creates an extractor that classifies methods with c.
func NewExtractor(c *Classifier, opts ...Option) *Extractor {
	x := &Extractor{classifier: c}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Extract returns every edge of g whose caller and callee lie under baseDir.
// The result is never nil.
func (x *Extractor) Extract(g graph.CallGraph, baseDir string) ([]Edge, Stats) {
	edges := make([]Edge, 0)
	stats := Stats{Dropped: make(map[DropReason]int)}

	nodes := g.Nodes()
	for i, n := range nodes {
		if x.onProgress != nil && i%100 == 0 {
			x.onProgress(i, len(nodes))
		}
		stats.Nodes++

		if !x.classifier.IsRealFunction(n.Method) {
			stats.SkippedNodes++
			continue
		}

		for _, site := range n.Sites {
			stats.CallSites++

			callerPos := n.SourcePositionAt(site)
			caller, ok := ToFileRange(callerPos, baseDir)
			if !ok {
				x.drop(&stats, Drop{Reason: DropCallerOutsideBase, Caller: n.Method, Position: callerPos})
				continue
			}

			for _, target := range uniqueMethods(g.PossibleTargets(n, site)) {
				target = x.classifier.ResolveCallTarget(target)
				if !x.classifier.IsRealFunction(target) {
					x.drop(&stats, Drop{Reason: DropNotRealFunction, Caller: n.Method, Target: target, Position: callerPos})
					continue
				}

				callee, ok := ToFileRange(target.Position, baseDir)
				if !ok {
					x.drop(&stats, Drop{Reason: DropCalleeOutsideBase, Caller: n.Method, Target: target, Position: target.Position})
					continue
				}

				edges = append(edges, Edge{Caller: caller, Callee: callee})
			}
		}
	}

	if x.onProgress != nil {
		x.onProgress(len(nodes), len(nodes))
	}

	stats.Edges = len(edges)
	return edges, stats
}

func (x *Extractor) drop(stats *Stats, d Drop) {
	stats.Dropped[d.Reason]++
	if x.onDrop != nil {
		x.onDrop(d)
	}
}

// uniqueMethods collapses target nodes that share a method, keeping first-seen order.
// This only undoes the engine's own repetition; edges themselves are never deduplicated.
func uniqueMethods(nodes []*graph.Node) []*graph.Method {
	seen := make(map[*graph.Method]bool, len(nodes))
	methods := make([]*graph.Method, 0, len(nodes))
	for _, n := range nodes {
		if n == nil || seen[n.Method] {
			continue
		}
		seen[n.Method] = true
		methods = append(methods, n.Method)
	}
	return methods
}

// Extract is a convenience wrapper around a default Extractor for the given table.
func Extract(g graph.CallGraph, baseDir string, t Table) []Edge {
	edges, _ := NewExtractor(NewClassifier(t)).Extract(g, baseDir)
	return edges
}
