package edges

import (
	"strings"

	"github.com/abramin/calledges/internal/graph"
)

// Table is the engine-specific naming data the classifier consults.
type Table struct {
	Sentinel         string   // Prefix the engine puts in front of construct names, e.g. "L"
	PreludeFiles     []string // Bootstrap files injected by the engine
	SyntheticMarkers []string // Substrings that mark runtime-modelling helpers
	FunctionSelector string   // Selector of an ordinary function body
}

// DefaultTable returns the table for an engine with the given prelude.
func DefaultTable(prelude []string) Table {
	return Table{
		Sentinel:         "L",
		PreludeFiles:     prelude,
		SyntheticMarkers: []string{"/make_node"},
		FunctionSelector: graph.FunctionSelector,
	}
}

// Classifier decides which methods are user-level functions.
type Classifier struct {
	table    Table
	prefixes []string
}

// NewClassifier builds a classifier from t.
func NewClassifier(t Table) *Classifier {
	if t.FunctionSelector == "" {
		t.FunctionSelector = graph.FunctionSelector
	}
	prefixes := make([]string, 0, len(t.PreludeFiles))
	for _, file := range t.PreludeFiles {
		if file == "" {
			continue
		}
		prefixes = append(prefixes, t.Sentinel+file+"/")
	}
	return &Classifier{table: t, prefixes: prefixes}
}

// IsRealFunction reports whether m is an ordinary function written by the program's author.
func (c *Classifier) IsRealFunction(m *graph.Method) bool {
	if m == nil || m.Kind == graph.KindSynthetic {
		return false
	}

	name := m.Name()
	for _, marker := range c.table.SyntheticMarkers {
		if marker != "" && strings.Contains(name, marker) {
			return false
		}
	}
	for _, prefix := range c.prefixes {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}

	return m.Selector == c.table.FunctionSelector
}
