package domain

import (
	"iter"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// NodeKey identifies a build graph node. Build passes of one package share the id and differ by variant.
type NodeKey struct {
	ID      InternedString
	Variant InternedString
}

// NewNodeKey creates a NodeKey from a package id and variant.
func NewNodeKey(id, variant string) NodeKey {
	return NodeKey{ID: NewInternedString(id), Variant: NewInternedString(variant)}
}

// String renders the key as id or id@variant.
func (k NodeKey) String() string {
	if k.Variant.IsZero() {
		return k.ID.String()
	}
	return k.ID.String() + "@" + k.Variant.String()
}

// Compare orders keys by ascending id, then variant.
func (k NodeKey) Compare(other NodeKey) int {
	if c := k.ID.Compare(other.ID); c != 0 {
		return c
	}
	return k.Variant.Compare(other.Variant)
}

// BuildGraphNode wraps a definition with its resolved dependency edges.
type BuildGraphNode struct {
	Key          NodeKey
	Definition   *BuildDefinition
	Dependencies []NodeKey
}

// BuildGraph is an acyclic dependency graph of build definitions.
type BuildGraph struct {
	nodes      map[NodeKey]*BuildGraphNode
	byID       map[InternedString][]NodeKey
	dependents map[NodeKey][]NodeKey
	order      []NodeKey
}

// NewBuildGraph builds the graph of the given definitions and computes its execution order.
// Every declared dependency becomes an edge from the dependent to the dependency. A reference
// without a variant points at every variant of that id except the referencing node itself.
func NewBuildGraph(defs []*BuildDefinition) (*BuildGraph, error) {
	g := &BuildGraph{
		nodes:      make(map[NodeKey]*BuildGraphNode, len(defs)),
		byID:       make(map[InternedString][]NodeKey, len(defs)),
		dependents: make(map[NodeKey][]NodeKey, len(defs)),
	}

	for _, def := range defs {
		key := def.Key()
		if _, exists := g.nodes[key]; exists {
			return nil, zerr.With(zerr.Wrap(ErrDuplicateNode, "failed to build graph"), "node", key.String())
		}
		g.nodes[key] = &BuildGraphNode{Key: key, Definition: def}
		g.byID[key.ID] = append(g.byID[key.ID], key)
	}
	for _, keys := range g.byID {
		slices.SortFunc(keys, NodeKey.Compare)
	}

	for _, key := range g.sortedKeys() {
		node := g.nodes[key]
		deps, err := g.resolveDependencies(node)
		if err != nil {
			return nil, err
		}
		node.Dependencies = deps
		for _, dep := range deps {
			g.dependents[dep] = append(g.dependents[dep], key)
		}
	}

	if err := g.sort(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *BuildGraph) resolveDependencies(node *BuildGraphNode) ([]NodeKey, error) {
	var deps []NodeKey
	for _, ref := range node.Definition.Dependencies {
		id, variant, err := ParseDependencyRef(ref)
		if err != nil {
			return nil, zerr.With(err, "node", node.Key.String())
		}

		var targets []NodeKey
		if variant != "" {
			if key := NewNodeKey(id, variant); g.nodes[key] != nil {
				targets = append(targets, key)
			}
		} else {
			for _, key := range g.byID[NewInternedString(id)] {
				if key != node.Key {
					targets = append(targets, key)
				}
			}
		}

		if len(targets) == 0 {
			err := zerr.With(zerr.Wrap(ErrMissingDependency, "failed to build graph"), "dependency", ref)
			return nil, zerr.With(err, "node", node.Key.String())
		}
		deps = append(deps, targets...)
	}

	slices.SortFunc(deps, NodeKey.Compare)
	return slices.Compact(deps), nil
}

// sort runs Kahn's algorithm, always picking the smallest ready key so the order is stable across runs.
func (g *BuildGraph) sort() error {
	inDegree := make(map[NodeKey]int, len(g.nodes))
	var ready []NodeKey
	for key, node := range g.nodes {
		inDegree[key] = len(node.Dependencies)
		if len(node.Dependencies) == 0 {
			ready = append(ready, key)
		}
	}
	slices.SortFunc(ready, NodeKey.Compare)

	g.order = make([]NodeKey, 0, len(g.nodes))
	for len(ready) > 0 {
		key := ready[0]
		ready = ready[1:]
		g.order = append(g.order, key)

		for _, dependent := range g.dependents[key] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				pos, _ := slices.BinarySearchFunc(ready, dependent, NodeKey.Compare)
				ready = slices.Insert(ready, pos, dependent)
			}
		}
	}

	if len(g.order) == len(g.nodes) {
		return nil
	}

	remaining := make(map[NodeKey]bool, len(g.nodes)-len(g.order))
	for key, degree := range inDegree {
		if degree > 0 {
			remaining[key] = true
		}
	}
	g.order = nil
	return g.buildCycleError(remaining)
}

// buildCycleError finds one cycle among the nodes left over by the sort and reports its full path.
func (g *BuildGraph) buildCycleError(remaining map[NodeKey]bool) error {
	starts := make([]NodeKey, 0, len(remaining))
	for key := range remaining {
		starts = append(starts, key)
	}
	slices.SortFunc(starts, NodeKey.Compare)

	visited := make(map[NodeKey]int) // 0: unvisited, 1: visiting, 2: visited
	var path []NodeKey
	var cycle []NodeKey

	var visit func(u NodeKey) bool
	visit = func(u NodeKey) bool {
		visited[u] = 1
		path = append(path, u)
		for _, dep := range g.nodes[u].Dependencies {
			if !remaining[dep] {
				continue
			}
			if visited[dep] == 1 {
				start := slices.Index(path, dep)
				cycle = append(slices.Clone(path[start:]), dep)
				return true
			}
			if visited[dep] == 0 && visit(dep) {
				return true
			}
		}
		visited[u] = 2
		path = path[:len(path)-1]
		return false
	}

	for _, start := range starts {
		if visited[start] == 0 && visit(start) {
			break
		}
	}

	parts := make([]string, len(cycle))
	for i, key := range cycle {
		parts[i] = key.String()
	}
	return zerr.With(zerr.Wrap(ErrCycleDetected, "failed to build graph"), "cycle", strings.Join(parts, " -> "))
}

func (g *BuildGraph) sortedKeys() []NodeKey {
	keys := make([]NodeKey, 0, len(g.nodes))
	for key := range g.nodes {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, NodeKey.Compare)
	return keys
}

// Len returns the number of nodes.
func (g *BuildGraph) Len() int {
	return len(g.nodes)
}

// Node returns the node stored under key.
func (g *BuildGraph) Node(key NodeKey) (*BuildGraphNode, bool) {
	node, ok := g.nodes[key]
	return node, ok
}

// Dependents returns the keys of the nodes that depend on key, in ascending order.
func (g *BuildGraph) Dependents(key NodeKey) []NodeKey {
	deps := slices.Clone(g.dependents[key])
	slices.SortFunc(deps, NodeKey.Compare)
	return deps
}

// TopologicalOrder returns every node with each dependency placed before its dependents.
func (g *BuildGraph) TopologicalOrder() []*BuildGraphNode {
	return slices.Collect(g.Walk())
}

// Walk returns an iterator that yields nodes in execution order.
func (g *BuildGraph) Walk() iter.Seq[*BuildGraphNode] {
	return func(yield func(*BuildGraphNode) bool) {
		for _, key := range g.order {
			if !yield(g.nodes[key]) {
				return
			}
		}
	}
}

// Select returns the subgraph made of the referenced nodes and everything they transitively depend on.
// References use the id or id@variant form; a bare id selects every variant of it.
func (g *BuildGraph) Select(refs []string) (*BuildGraph, error) {
	if len(refs) == 0 {
		return g, nil
	}

	selected := make(map[NodeKey]bool)
	var stack []NodeKey
	for _, ref := range refs {
		id, variant, err := ParseDependencyRef(ref)
		if err != nil {
			return nil, err
		}
		var keys []NodeKey
		if variant != "" {
			if key := NewNodeKey(id, variant); g.nodes[key] != nil {
				keys = []NodeKey{key}
			}
		} else {
			keys = g.byID[NewInternedString(id)]
		}
		if len(keys) == 0 {
			return nil, zerr.With(zerr.Wrap(ErrNodeNotFound, "failed to select packages"), "package", ref)
		}
		stack = append(stack, keys...)
	}

	for len(stack) > 0 {
		key := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if selected[key] {
			continue
		}
		selected[key] = true
		stack = append(stack, g.nodes[key].Dependencies...)
	}

	defs := make([]*BuildDefinition, 0, len(selected))
	for _, key := range g.order {
		if selected[key] {
			defs = append(defs, g.nodes[key].Definition)
		}
	}
	return NewBuildGraph(defs)
}
