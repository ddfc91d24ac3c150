package edges

import "github.com/abramin/calledges/internal/graph"

// ResolveCallTarget maps a constructor-dispatch method onto the function body declared
// next to it. Any other method, or a constructor without a body, is returned unchanged.
func (c *Classifier) ResolveCallTarget(m *graph.Method) *graph.Method {
	if m == nil || m.Kind != graph.KindConstructor || m.Class == nil {
		return m
	}
	if body := m.Class.Method(c.table.FunctionSelector); body != nil {
		return body
	}
	return m
}
