package jsengine

// binding is the set of functions a variable, parameter or property may hold.
// Insertion order is kept so graph construction is deterministic.
type binding struct {
	fns  []*function
	seen map[*function]bool
}

func newBinding() *binding {
	return &binding{seen: make(map[*function]bool)}
}

// add reports whether fn was new to the binding.
func (b *binding) add(fn *function) bool {
	if fn == nil || b.seen[fn] {
		return false
	}
	b.seen[fn] = true
	b.fns = append(b.fns, fn)
	return true
}

func (b *binding) addAll(fns []*function) bool {
	changed := false
	for _, fn := range fns {
		if b.add(fn) {
			changed = true
		}
	}
	return changed
}

// scope is one lexical level. Blocks are folded into their function.
// The user global scope's parent is the bootstrap global scope, so names a
// program never declares resolve to the runtime model.
type scope struct {
	parent *scope
	vars   map[string]*binding
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, vars: make(map[string]*binding)}
}

// declare returns the binding for name in this scope, creating it if needed.
func (s *scope) declare(name string) *binding {
	b, ok := s.vars[name]
	if !ok {
		b = newBinding()
		s.vars[name] = b
	}
	return b
}

// lookup walks outward until name is found.
func (s *scope) lookup(name string) *binding {
	for cur := s; cur != nil; cur = cur.parent {
		if b, ok := cur.vars[name]; ok {
			return b
		}
	}
	return nil
}

// properties is the field-based store: every function written under a
// property name, regardless of the receiving object.
type properties map[string]*binding

func (p properties) slot(name string) *binding {
	b, ok := p[name]
	if !ok {
		b = newBinding()
		p[name] = b
	}
	return b
}

func (p properties) get(name string) []*function {
	if b, ok := p[name]; ok {
		return b.fns
	}
	return nil
}
