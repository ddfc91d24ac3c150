package jsengine

import (
	"context"
	"fmt"
	"log/slog"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/abramin/calledges/internal/graph"
)

// maxIterations bounds the propagation fixpoint.
const maxIterations = 64

// function is one declaring construct: a script top level, a function or a class.
type function struct {
	class  *graph.Class
	body   *graph.Method
	ctor   *graph.Method // nil unless usable with new
	file   *sourceFile
	scope  *scope
	params []*binding // nil entries for destructured parameters
	sites  []*callSite
}

type callSite struct {
	node      *sitter.Node
	construct bool
	scope     *scope
	file      *sourceFile
	targets   []*function
}

// flow copies the functions an expression may evaluate to into a destination.
type flow struct {
	expr  *sitter.Node
	scope *scope
	file  *sourceFile

	name     string   // variable, resolved lazily so hoisted declarations win
	prop     string   // field-based property
	slot     *binding // fixed destination
	resolved *binding
}

type nodeKey struct {
	file       *sourceFile
	start, end uint32
	typ        string
}

// analyzer builds a flow-insensitive, field-based call graph in the style of
// an approximate call graph: functions flow through variables, parameters and
// property names until nothing changes.
type analyzer struct {
	logger     *slog.Logger
	limit      int // fixpoint iteration cap
	userGlobal *scope
	bootGlobal *scope
	props      properties
	funcs      []*function
	tops       []*function
	byNode     map[nodeKey]*function
	flows      []*flow
}

func newAnalyzer(logger *slog.Logger) *analyzer {
	boot := newScope(nil)
	return &analyzer{
		logger:     logger,
		limit:      maxIterations,
		userGlobal: newScope(boot),
		bootGlobal: boot,
		props:      make(properties),
		byNode:     make(map[nodeKey]*function),
	}
}

func (a *analyzer) globalFor(f *sourceFile) *scope {
	if f.bootstrap {
		return a.bootGlobal
	}
	return a.userGlobal
}

// collectFile declares every function of f and records its call sites.
func (a *analyzer) collectFile(f *sourceFile) {
	global := a.globalFor(f)
	class := graph.NewClass("L" + f.url)
	top := &function{
		class: class,
		body:  class.AddMethod(graph.FunctionSelector, graph.KindOrdinary, &graph.Position{URL: f.url, Start: 0, End: len(f.src)}),
		file:  f,
		scope: global,
	}
	a.funcs = append(a.funcs, top)
	a.tops = append(a.tops, top)
	for _, tree := range f.trees {
		a.visitChildren(tree.RootNode(), top, global)
	}
}

func (a *analyzer) newFunction(parent *function, name string, n *sitter.Node, newable bool) *function {
	class := graph.NewClass(parent.class.Name + "/" + name)
	fn := &function{
		class: class,
		body:  class.AddMethod(graph.FunctionSelector, graph.KindOrdinary, span(parent.file, n)),
		file:  parent.file,
		scope: newScope(parent.scope),
	}
	if newable {
		fn.ctor = class.AddMethod(graph.ConstructorSelector, graph.KindConstructor, nil)
	}
	a.funcs = append(a.funcs, fn)
	a.byNode[keyOf(parent.file, n)] = fn
	return fn
}

func (a *analyzer) visitChildren(n *sitter.Node, fn *function, sc *scope) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		a.visit(n.NamedChild(i), fn, sc, "")
	}
}

// visit walks n inside fn. hint names anonymous functions after the
// variable, property or assignment target they are stored in.
func (a *analyzer) visit(n *sitter.Node, fn *function, sc *scope, hint string) {
	if n == nil {
		return
	}
	src := fn.file.src

	switch n.Type() {
	case "function_declaration", "generator_function_declaration":
		name := fieldText(n, "name", src)
		g := a.declareFunction(n, fn, sc, name, n.Type() == "function_declaration")
		if name != "" {
			sc.declare(name).add(g)
		}

	case "function", "function_expression", "generator_function":
		name := fieldText(n, "name", src)
		if name == "" {
			name = hint
		}
		a.declareFunction(n, fn, sc, name, n.Type() != "generator_function")

	case "arrow_function":
		a.declareFunction(n, fn, sc, hint, false)

	case "class_declaration", "class":
		name := fieldText(n, "name", src)
		if name == "" {
			name = hint
		}
		g := a.declareClass(n, fn, sc, name)
		if n.Type() == "class_declaration" && name != "" {
			sc.declare(name).add(g)
		}

	case "method_definition":
		name := propertyKey(n.ChildByFieldName("name"), src)
		g := a.declareFunction(n, fn, sc, name, false)
		if name != "" {
			a.props.slot(name).add(g)
		}

	case "variable_declarator":
		nameNode := n.ChildByFieldName("name")
		value := n.ChildByFieldName("value")
		if nameNode != nil && nameNode.Type() == "identifier" {
			name := nameNode.Content(src)
			slot := sc.declare(name)
			if value != nil {
				a.flows = append(a.flows, &flow{expr: value, scope: sc, file: fn.file, slot: slot})
				a.visit(value, fn, sc, name)
			}
			return
		}
		declarePattern(nameNode, sc, src)
		a.visit(value, fn, sc, "")

	case "assignment_expression":
		left := n.ChildByFieldName("left")
		right := n.ChildByFieldName("right")
		fl := &flow{expr: right, scope: sc, file: fn.file}
		name := ""
		if left != nil {
			switch left.Type() {
			case "identifier":
				fl.name = left.Content(src)
				name = fl.name
			case "member_expression":
				fl.prop = propertyName(left, src)
				name = fl.prop
				if isModuleExports(left, src) {
					fl.slot = fn.file.exports
				}
				a.visit(left, fn, sc, "")
			case "subscript_expression":
				fl.prop, _ = stringValue(left.ChildByFieldName("index"), src)
				name = fl.prop
				a.visit(left, fn, sc, "")
			}
		}
		if right != nil && (fl.name != "" || fl.prop != "" || fl.slot != nil) {
			a.flows = append(a.flows, fl)
		}
		a.visit(right, fn, sc, name)

	case "pair":
		key := propertyKey(n.ChildByFieldName("key"), src)
		value := n.ChildByFieldName("value")
		if key != "" && value != nil {
			a.flows = append(a.flows, &flow{expr: value, scope: sc, file: fn.file, prop: key})
		}
		a.visit(value, fn, sc, key)

	case "call_expression", "new_expression":
		fn.sites = append(fn.sites, &callSite{
			node:      n,
			construct: n.Type() == "new_expression",
			scope:     sc,
			file:      fn.file,
		})
		a.visitChildren(n, fn, sc)

	default:
		a.visitChildren(n, fn, sc)
	}
}

func (a *analyzer) declareFunction(n *sitter.Node, parent *function, sc *scope, name string, newable bool) *function {
	if name == "" {
		name = fmt.Sprintf("anonymous@%d", n.StartByte())
	}
	fn := a.newFunction(parent, name, n, newable)
	fn.scope.parent = sc

	// A named function expression sees its own name.
	if n.Type() != "function_declaration" && n.Type() != "method_definition" {
		if own := fieldText(n, "name", parent.file.src); own != "" {
			fn.scope.declare(own).add(fn)
		}
	}

	a.declareParams(fn, n)
	a.visit(n.ChildByFieldName("body"), fn, fn.scope, "")
	return fn
}

// declareClass models a class as a constructible function whose body is its
// constructor. Methods are declared beneath it and stored by property name.
func (a *analyzer) declareClass(n *sitter.Node, parent *function, sc *scope, name string) *function {
	if name == "" {
		name = fmt.Sprintf("anonymous@%d", n.StartByte())
	}
	fn := a.newFunction(parent, name, n, true)
	fn.scope.parent = sc
	src := parent.file.src

	if own := fieldText(n, "name", src); own != "" {
		fn.scope.declare(own).add(fn)
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == "class_heritage" {
			a.visit(child, parent, sc, "")
		}
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return fn
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "method_definition":
			mname := propertyKey(member.ChildByFieldName("name"), src)
			if mname == "constructor" {
				fn.body.Position = span(fn.file, member)
				a.byNode[keyOf(fn.file, member)] = fn
				a.declareParams(fn, member)
				a.visit(member.ChildByFieldName("body"), fn, fn.scope, "")
				continue
			}
			m := a.declareFunction(member, fn, fn.scope, mname, false)
			if mname != "" {
				a.props.slot(mname).add(m)
			}
		case "field_definition":
			pname := propertyKey(member.ChildByFieldName("property"), src)
			value := member.ChildByFieldName("value")
			if pname != "" && value != nil {
				a.flows = append(a.flows, &flow{expr: value, scope: fn.scope, file: fn.file, prop: pname})
			}
			a.visit(value, fn, fn.scope, pname)
		default:
			a.visit(member, fn, fn.scope, "")
		}
	}
	return fn
}

func (a *analyzer) declareParams(fn *function, n *sitter.Node) {
	params := n.ChildByFieldName("parameters")
	if params == nil {
		if p := n.ChildByFieldName("parameter"); p != nil {
			fn.params = append(fn.params, a.bindParam(fn, p))
		}
		return
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p.Type() == "comment" {
			continue
		}
		fn.params = append(fn.params, a.bindParam(fn, p))
	}
}

func (a *analyzer) bindParam(fn *function, p *sitter.Node) *binding {
	src := fn.file.src
	switch p.Type() {
	case "identifier":
		return fn.scope.declare(p.Content(src))
	case "assignment_pattern":
		b := a.bindParam(fn, p.ChildByFieldName("left"))
		right := p.ChildByFieldName("right")
		if b != nil && right != nil {
			a.flows = append(a.flows, &flow{expr: right, scope: fn.scope, file: fn.file, slot: b})
		}
		a.visit(right, fn, fn.scope, "")
		return b
	default:
		declarePattern(p, fn.scope, src)
		return nil
	}
}

// solve propagates functions through flows and call arguments to a fixpoint,
// then fixes each call site's targets.
func (a *analyzer) solve(ctx context.Context) error {
	converged := false
	for i := 0; i < a.limit; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		changed := false
		for _, fl := range a.flows {
			if a.applyFlow(fl) {
				changed = true
			}
		}
		for _, fn := range a.funcs {
			for _, s := range fn.sites {
				if a.flowArguments(s) {
					changed = true
				}
			}
		}
		if !changed {
			converged = true
			break
		}
	}
	if !converged {
		a.logger.Warn("call resolution did not converge; call targets may be incomplete", "iterations", a.limit)
	}

	for _, fn := range a.funcs {
		for _, s := range fn.sites {
			targets, _, _ := a.callees(s)
			s.targets = unique(targets)
		}
	}
	return nil
}

func (a *analyzer) applyFlow(fl *flow) bool {
	fns := a.valueOf(fl.expr, fl.scope, fl.file)
	if len(fns) == 0 {
		return false
	}
	changed := false
	if fl.slot != nil && fl.slot.addAll(fns) {
		changed = true
	}
	if fl.prop != "" && a.props.slot(fl.prop).addAll(fns) {
		changed = true
	}
	if fl.name != "" {
		if fl.resolved == nil {
			fl.resolved = fl.scope.lookup(fl.name)
			if fl.resolved == nil {
				fl.resolved = a.globalFor(fl.file).declare(fl.name)
			}
		}
		if fl.resolved.addAll(fns) {
			changed = true
		}
	}
	return changed
}

// callees returns the functions a call site may invoke, the index of the
// first argument passed to the callee's first parameter, and whether
// arguments flow positionally at all.
func (a *analyzer) callees(s *callSite) ([]*function, int, bool) {
	src := s.file.src
	if s.construct {
		return a.valueOf(s.node.ChildByFieldName("constructor"), s.scope, s.file), 0, true
	}

	callee := s.node.ChildByFieldName("function")
	if callee != nil && callee.Type() == "member_expression" {
		switch propertyName(callee, src) {
		case "call":
			if fns := a.valueOf(callee.ChildByFieldName("object"), s.scope, s.file); len(fns) > 0 {
				return fns, 1, true
			}
		case "apply":
			if fns := a.valueOf(callee.ChildByFieldName("object"), s.scope, s.file); len(fns) > 0 {
				return fns, 0, false
			}
		}
	}
	return a.valueOf(callee, s.scope, s.file), 0, true
}

func (a *analyzer) flowArguments(s *callSite) bool {
	targets, offset, positional := a.callees(s)
	if !positional || len(targets) == 0 {
		return false
	}
	args := arguments(s.node)
	changed := false
	for _, t := range targets {
		for i, p := range t.params {
			if p == nil || i+offset >= len(args) {
				continue
			}
			if p.addAll(a.valueOf(args[i+offset], s.scope, s.file)) {
				changed = true
			}
		}
	}
	return changed
}

// valueOf returns the functions expression n may evaluate to.
func (a *analyzer) valueOf(n *sitter.Node, sc *scope, f *sourceFile) []*function {
	if n == nil {
		return nil
	}
	src := f.src

	switch n.Type() {
	case "identifier":
		if b := sc.lookup(n.Content(src)); b != nil {
			return b.fns
		}
		return nil

	case "function", "function_expression", "generator_function", "arrow_function", "class":
		if fn, ok := a.byNode[keyOf(f, n)]; ok {
			return []*function{fn}
		}
		return nil

	case "parenthesized_expression", "await_expression":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if child := n.NamedChild(i); child.Type() != "comment" {
				return a.valueOf(child, sc, f)
			}
		}
		return nil

	case "member_expression":
		return a.props.get(propertyName(n, src))

	case "subscript_expression":
		if key, ok := stringValue(n.ChildByFieldName("index"), src); ok {
			return a.props.get(key)
		}
		return nil

	case "assignment_expression":
		return a.valueOf(n.ChildByFieldName("right"), sc, f)

	case "ternary_expression":
		return union(
			a.valueOf(n.ChildByFieldName("consequence"), sc, f),
			a.valueOf(n.ChildByFieldName("alternative"), sc, f),
		)

	case "binary_expression":
		return union(
			a.valueOf(n.ChildByFieldName("left"), sc, f),
			a.valueOf(n.ChildByFieldName("right"), sc, f),
		)

	case "sequence_expression":
		if count := int(n.NamedChildCount()); count > 0 {
			return a.valueOf(n.NamedChild(count-1), sc, f)
		}
		return nil

	case "call_expression":
		callee := n.ChildByFieldName("function")
		if callee == nil {
			return nil
		}
		if callee.Type() == "member_expression" && propertyName(callee, src) == "bind" {
			return a.valueOf(callee.ChildByFieldName("object"), sc, f)
		}
		if callee.Type() == "identifier" && callee.Content(src) == "require" {
			if args := arguments(n); len(args) > 0 {
				if spec, ok := stringValue(args[0], src); ok {
					if dep := f.requires[spec]; dep != nil {
						return dep.exports.fns
					}
				}
			}
		}
		return nil
	}
	return nil
}

// buildGraph keeps the functions reachable from the script top levels.
// A new expression targets the constructor shim, which calls the body.
func (a *analyzer) buildGraph() *graph.Graph {
	reached := make(map[*function]bool)
	ctorReached := make(map[*function]bool)
	queue := make([]*function, 0, len(a.tops))
	for _, top := range a.tops {
		reached[top] = true
		queue = append(queue, top)
	}
	for len(queue) > 0 {
		fn := queue[0]
		queue = queue[1:]
		for _, s := range fn.sites {
			for _, t := range s.targets {
				if s.construct {
					if t.ctor == nil {
						continue
					}
					ctorReached[t] = true
				}
				if !reached[t] {
					reached[t] = true
					queue = append(queue, t)
				}
			}
		}
	}

	g := graph.New()
	bodies := make(map[*function]*graph.Node)
	ctors := make(map[*function]*graph.Node)
	for _, fn := range a.funcs {
		if reached[fn] {
			bodies[fn], _ = g.NodeFor(fn.body)
		}
	}
	for _, fn := range a.funcs {
		if ctorReached[fn] {
			n, _ := g.NodeFor(fn.ctor)
			ctors[fn] = n
			g.AddCall(n, 0, bodies[fn])
		}
	}

	for _, fn := range a.funcs {
		caller, ok := bodies[fn]
		if !ok {
			continue
		}
		for pc, s := range fn.sites {
			fn.body.SetSitePosition(pc, span(s.file, s.node))
			g.AddSite(caller, pc)
			for _, t := range s.targets {
				target := bodies[t]
				if s.construct {
					target = ctors[t]
				}
				if target != nil {
					g.AddCall(caller, pc, target)
				}
			}
		}
	}
	return g
}

func arguments(call *sitter.Node) []*sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.Type() != "arguments" {
		return nil
	}
	out := make([]*sitter.Node, 0, args.NamedChildCount())
	for i := 0; i < int(args.NamedChildCount()); i++ {
		if arg := args.NamedChild(i); arg.Type() != "comment" {
			out = append(out, arg)
		}
	}
	return out
}

func span(f *sourceFile, n *sitter.Node) *graph.Position {
	return &graph.Position{URL: f.url, Start: int(n.StartByte()), End: int(n.EndByte())}
}

func keyOf(f *sourceFile, n *sitter.Node) nodeKey {
	return nodeKey{file: f, start: n.StartByte(), end: n.EndByte(), typ: n.Type()}
}

func fieldText(n *sitter.Node, field string, src []byte) string {
	if c := n.ChildByFieldName(field); c != nil {
		return c.Content(src)
	}
	return ""
}

func propertyName(member *sitter.Node, src []byte) string {
	return fieldText(member, "property", src)
}

func propertyKey(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "property_identifier", "private_property_identifier", "identifier", "number":
		return n.Content(src)
	case "string":
		s, _ := stringValue(n, src)
		return s
	}
	return ""
}

func isModuleExports(member *sitter.Node, src []byte) bool {
	obj := member.ChildByFieldName("object")
	return obj != nil && obj.Type() == "identifier" && obj.Content(src) == "module" &&
		propertyName(member, src) == "exports"
}

// declarePattern declares the names bound by a destructuring pattern so
// they shadow outer bindings.
func declarePattern(n *sitter.Node, sc *scope, src []byte) {
	walk(n, func(c *sitter.Node) bool {
		switch c.Type() {
		case "identifier", "shorthand_property_identifier_pattern":
			sc.declare(c.Content(src))
		case "assignment_pattern":
			declarePattern(c.ChildByFieldName("left"), sc, src)
			return false
		}
		return true
	})
}

func union(a, b []*function) []*function {
	if len(b) == 0 {
		return a
	}
	if len(a) == 0 {
		return b
	}
	return unique(append(append([]*function(nil), a...), b...))
}

func unique(fns []*function) []*function {
	seen := make(map[*function]bool, len(fns))
	out := make([]*function, 0, len(fns))
	for _, fn := range fns {
		if !seen[fn] {
			seen[fn] = true
			out = append(out, fn)
		}
	}
	return out
}
