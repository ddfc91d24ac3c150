// Package graph holds the call-graph model engines produce and the edge extractor walks.
package graph

// CallGraph is the read-only view the extractor needs.
type CallGraph interface {
	Nodes() []*Node
	PossibleTargets(caller *Node, site CallSite) []*Node
}

// Graph is an in-memory directed multigraph of method nodes.
// Cycles and unreachable nodes are allowed.
type Graph struct {
	nodes   []*Node
	byMeth  map[*Method]*Node
	targets map[*Node]map[int][]*Node
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		byMeth:  make(map[*Method]*Node),
		targets: make(map[*Node]map[int][]*Node),
	}
}

// AddNode appends a node for m. Engines that are context-insensitive should use NodeFor.
func (g *Graph) AddNode(m *Method) *Node {
	n := &Node{ID: len(g.nodes), Method: m}
	g.nodes = append(g.nodes, n)
	if _, ok := g.byMeth[m]; !ok {
		g.byMeth[m] = n
	}
	return n
}

// NodeFor returns the first node created for m, creating one if needed.
// The second result reports whether the node was created by this call.
func (g *Graph) NodeFor(m *Method) (*Node, bool) {
	if n, ok := g.byMeth[m]; ok {
		return n, false
	}
	return g.AddNode(m), true
}

// AddSite registers a call site on caller. Registering the same pc twice is a no-op.
func (g *Graph) AddSite(caller *Node, pc int) {
	sites, ok := g.targets[caller]
	if !ok {
		sites = make(map[int][]*Node)
		g.targets[caller] = sites
	}
	if _, ok := sites[pc]; ok {
		return
	}
	sites[pc] = nil
	caller.Sites = append(caller.Sites, CallSite{PC: pc})
}

// AddCall records that the call site at pc in caller may invoke target.
func (g *Graph) AddCall(caller *Node, pc int, target *Node) {
	g.AddSite(caller, pc)
	g.targets[caller][pc] = append(g.targets[caller][pc], target)
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// PossibleTargets returns the nodes the call site may invoke. The result may repeat methods.
func (g *Graph) PossibleTargets(caller *Node, site CallSite) []*Node {
	return g.targets[caller][site.PC]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// EdgeCount returns the number of (site, target) pairs recorded.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, sites := range g.targets {
		for _, targets := range sites {
			count += len(targets)
		}
	}
	return count
}
