package goengine

import (
	"fmt"
	"go/ast"
	"go/token"
	"sort"

	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/callgraph/static"
	"golang.org/x/tools/go/callgraph/vta"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/abramin/calledges/internal/graph"
)

// CallGraphBuilder builds SSA for the loaded packages and converts the
// resulting call graph into the engine-neutral model.
type CallGraphBuilder struct {
	loader    *Loader
	algorithm string
	prog      *ssa.Program

	methods   map[*ssa.Function]*graph.Method
	callExprs map[*ssa.Function]map[token.Pos]*ast.CallExpr
}

// NewCallGraphBuilder creates a new call graph builder.
func NewCallGraphBuilder(loader *Loader, algorithm string) *CallGraphBuilder {
	return &CallGraphBuilder{
		loader:    loader,
		algorithm: algorithm,
		methods:   make(map[*ssa.Function]*graph.Method),
		callExprs: make(map[*ssa.Function]map[token.Pos]*ast.CallExpr),
	}
}

// Build constructs SSA for every loaded package and its dependencies.
func (b *CallGraphBuilder) Build() {
	prog, _ := ssautil.AllPackages(b.loader.Packages(), ssa.InstantiateGenerics)
	prog.Build()
	b.prog = prog
}

// CallGraph computes the call graph with the configured algorithm.
func (b *CallGraphBuilder) CallGraph() (*callgraph.Graph, error) {
	switch b.algorithm {
	case "", "cha":
		return cha.CallGraph(b.prog), nil
	case "static":
		return static.CallGraph(b.prog), nil
	case "vta":
		return vta.CallGraph(ssautil.AllFunctions(b.prog), cha.CallGraph(b.prog)), nil
	default:
		return nil, fmt.Errorf("unknown call graph algorithm %q", b.algorithm)
	}
}

// Convert turns cg into a graph whose nodes are ordered by function name and
// whose call sites are numbered in source order.
func (b *CallGraphBuilder) Convert(cg *callgraph.Graph) *graph.Graph {
	funcs := make([]*ssa.Function, 0, len(cg.Nodes))
	for fn := range cg.Nodes {
		if fn != nil {
			funcs = append(funcs, fn)
		}
	}
	sort.Slice(funcs, func(i, j int) bool {
		if x, y := funcs[i].String(), funcs[j].String(); x != y {
			return x < y
		}
		return funcs[i].Pos() < funcs[j].Pos()
	})

	g := graph.New()
	nodes := make(map[*ssa.Function]*graph.Node, len(funcs))
	for _, fn := range funcs {
		nodes[fn], _ = g.NodeFor(b.method(fn))
	}

	for _, fn := range funcs {
		caller := nodes[fn]
		var out []*callgraph.Edge
		for _, e := range cg.Nodes[fn].Out {
			if e.Site != nil && e.Callee.Func != nil {
				out = append(out, e)
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Site.Pos() < out[j].Site.Pos()
		})

		pcs := make(map[ssa.CallInstruction]int)
		for _, e := range out {
			pc, ok := pcs[e.Site]
			if !ok {
				pc = len(pcs)
				pcs[e.Site] = pc
				caller.Method.SetSitePosition(pc, b.sitePosition(fn, e.Site))
			}
			g.AddCall(caller, pc, nodes[e.Callee.Func])
		}
	}
	return g
}

// method returns the single body method of fn, creating its construct on first use.
func (b *CallGraphBuilder) method(fn *ssa.Function) *graph.Method {
	if m, ok := b.methods[fn]; ok {
		return m
	}
	kind := graph.KindOrdinary
	var pos *graph.Position
	if fn.Synthetic != "" || fn.Syntax() == nil {
		kind = graph.KindSynthetic
	} else {
		pos = b.position(fn.Syntax().Pos(), fn.Syntax().End())
	}
	m := graph.NewClass(className(fn)).AddMethod(graph.FunctionSelector, kind, pos)
	b.methods[fn] = m
	return m
}

// sitePosition spans the call expression behind site, falling back to the
// call's own position when no syntax is available.
func (b *CallGraphBuilder) sitePosition(fn *ssa.Function, site ssa.CallInstruction) *graph.Position {
	lparen := site.Common().Pos()
	if call, ok := b.callExprsOf(fn)[lparen]; ok {
		return b.position(call.Pos(), call.End())
	}
	pos := site.Pos()
	if !pos.IsValid() {
		pos = lparen
	}
	return b.position(pos, pos)
}

func (b *CallGraphBuilder) callExprsOf(fn *ssa.Function) map[token.Pos]*ast.CallExpr {
	if exprs, ok := b.callExprs[fn]; ok {
		return exprs
	}
	exprs := make(map[token.Pos]*ast.CallExpr)
	if syntax := fn.Syntax(); syntax != nil {
		ast.Inspect(syntax, func(n ast.Node) bool {
			if call, ok := n.(*ast.CallExpr); ok {
				exprs[call.Lparen] = call
			}
			return true
		})
	}
	b.callExprs[fn] = exprs
	return exprs
}

func (b *CallGraphBuilder) position(start, end token.Pos) *graph.Position {
	if !start.IsValid() {
		return nil
	}
	fset := b.loader.FileSet()
	from := fset.Position(start)
	to := from
	if end.IsValid() {
		to = fset.Position(end)
	}
	return &graph.Position{URL: from.Filename, Start: from.Offset, End: to.Offset}
}

// className names fn's construct after its package path, like "Lnet/http/Get".
func className(fn *ssa.Function) string {
	pkg := fn.Pkg
	if pkg == nil && fn.Origin() != nil {
		pkg = fn.Origin().Pkg
	}
	if pkg == nil || pkg.Pkg == nil {
		return "L" + fn.String()
	}
	return "L" + pkg.Pkg.Path() + "/" + fn.RelString(pkg.Pkg)
}
