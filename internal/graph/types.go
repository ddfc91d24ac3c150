package graph

import (
	"net/url"
	"path/filepath"
	"strings"
)

// MethodKind tags how the engine produced a method.
type MethodKind string

const (
	KindOrdinary    MethodKind = "ordinary"    // Source-backed function body
	KindSynthetic   MethodKind = "synthetic"   // Engine artifact: summaries, stubs, wrappers
	KindConstructor MethodKind = "constructor" // Dispatch shim behind a `new` expression
)

// Selectors shared by the engines.
const (
	FunctionSelector    = "do"
	ConstructorSelector = "ctor"
)

// Position locates a span of source text as reported by an engine.
// Start and End are byte offsets into the file named by URL.
type Position struct {
	URL   string `json:"url"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// File resolves the position's URL to a local path.
// It reports false when the URL does not name a local file.
func (p *Position) File() (string, bool) {
	if p == nil || p.URL == "" {
		return "", false
	}
	if !strings.Contains(p.URL, "://") {
		return p.URL, true
	}
	u, err := url.Parse(p.URL)
	if err != nil || u.Scheme != "file" || u.Path == "" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}

// Class is a declaring construct: a script, a function, a class or a Go package member.
type Class struct {
	Name    string
	methods map[string]*Method
}

// NewClass creates an empty declaring construct.
func NewClass(name string) *Class {
	return &Class{
		Name:    name,
		methods: make(map[string]*Method),
	}
}

// AddMethod declares a method on the construct, replacing any method with the same selector.
func (c *Class) AddMethod(selector string, kind MethodKind, pos *Position) *Method {
	m := &Method{
		Class:    c,
		Selector: selector,
		Kind:     kind,
		Position: pos,
		sites:    make(map[int]*Position),
	}
	c.methods[selector] = m
	return m
}

// Method returns the method declared under selector, or nil.
func (c *Class) Method(selector string) *Method {
	return c.methods[selector]
}

// Method identifies one method of a declaring construct.
type Method struct {
	Class    *Class
	Selector string
	Kind     MethodKind
	Position *Position // Definition site; nil when not source-backed

	sites map[int]*Position
}

// SetSitePosition records the source position of the call site at pc.
func (m *Method) SetSitePosition(pc int, pos *Position) {
	m.sites[pc] = pos
}

// SourcePositionAt returns the position of the call site at pc, or nil.
func (m *Method) SourcePositionAt(pc int) *Position {
	return m.sites[pc]
}

// Name returns the qualified name of the declaring construct.
func (m *Method) Name() string {
	if m.Class == nil {
		return ""
	}
	return m.Class.Name
}

func (m *Method) String() string {
	return m.Name() + "." + m.Selector
}

// CallSite is a single call expression in a node's body.
type CallSite struct {
	PC int
}

// Node is one call-graph node: a method plus the call sites it contains.
type Node struct {
	ID     int
	Method *Method
	Sites  []CallSite
}

// SourcePositionAt returns the position of site inside the node's method.
func (n *Node) SourcePositionAt(site CallSite) *Position {
	return n.Method.SourcePositionAt(site.PC)
}
