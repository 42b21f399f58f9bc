// Package digraph implements a small directed graph with typed node and edge
// attributes.
//
// Nodes and edges keep their insertion order. Every iteration the package
// exposes follows that order, so algorithms built on top of it are
// deterministic for a given construction sequence. Nodes are addressed either
// by their key K or by their dense index in [0, Len()).
package digraph

import (
	"errors"
	"fmt"
	"iter"
	"slices"
)

var (
	ErrNodeNotFound  = errors.New("digraph: node not found")
	ErrDuplicateNode = errors.New("digraph: node already exists")
	ErrIndexRange    = errors.New("digraph: node index out of range")
)

// Arc is a directed edge between two node indices.
type Arc[E any] struct {
	From int
	To   int
	Attr E
}

// Graph is a simple directed graph: at most one arc per ordered node pair.
// The zero value is not usable; create graphs with New.
type Graph[K comparable, N any, E any] struct {
	keys  []K
	nodes []N
	index map[K]int

	arcs  []Arc[E]
	pairs map[[2]int]int
	out   [][]int
	in    [][]int
}

func New[K comparable, N any, E any]() *Graph[K, N, E] {
	return &Graph[K, N, E]{
		index: make(map[K]int),
		pairs: make(map[[2]int]int),
	}
}

// Len returns the number of nodes.
func (g *Graph[K, N, E]) Len() int { return len(g.nodes) }

// Size returns the number of arcs.
func (g *Graph[K, N, E]) Size() int { return len(g.arcs) }

// AddNode inserts k with attributes n. It returns the node index and whether
// the node was newly added. An existing node keeps its attributes.
func (g *Graph[K, N, E]) AddNode(k K, n N) (int, bool) {
	if i, ok := g.index[k]; ok {
		return i, false
	}
	i := len(g.nodes)
	g.keys = append(g.keys, k)
	g.nodes = append(g.nodes, n)
	g.index[k] = i
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return i, true
}

// SetNode replaces the attributes of an existing node.
func (g *Graph[K, N, E]) SetNode(k K, n N) error {
	i, ok := g.index[k]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, k)
	}
	g.nodes[i] = n
	return nil
}

func (g *Graph[K, N, E]) HasNode(k K) bool {
	_, ok := g.index[k]
	return ok
}

// Index returns the dense index of k.
func (g *Graph[K, N, E]) Index(k K) (int, bool) {
	i, ok := g.index[k]
	return i, ok
}

func (g *Graph[K, N, E]) Node(k K) (N, bool) {
	i, ok := g.index[k]
	if !ok {
		var zero N
		return zero, false
	}
	return g.nodes[i], true
}

func (g *Graph[K, N, E]) KeyAt(i int) K  { return g.keys[i] }
func (g *Graph[K, N, E]) NodeAt(i int) N { return g.nodes[i] }

// Nodes yields every node in insertion order.
func (g *Graph[K, N, E]) Nodes() iter.Seq2[K, N] {
	return func(yield func(K, N) bool) {
		for i, k := range g.keys {
			if !yield(k, g.nodes[i]) {
				return
			}
		}
	}
}

// Arcs yields every arc in insertion order.
func (g *Graph[K, N, E]) Arcs() iter.Seq[Arc[E]] {
	return func(yield func(Arc[E]) bool) {
		for _, a := range g.arcs {
			if !yield(a) {
				return
			}
		}
	}
}

// SetEdge creates the arc u->v or overwrites its attributes.
func (g *Graph[K, N, E]) SetEdge(u, v K, e E) error {
	return g.UpdateEdge(u, v, func(E, bool) E { return e })
}

// UpdateEdge computes the attributes of u->v from the current ones. exists is
// false when the arc is about to be created, in which case cur is the zero
// value. Both endpoints must already be present.
func (g *Graph[K, N, E]) UpdateEdge(u, v K, fn func(cur E, exists bool) E) error {
	ui, ok := g.index[u]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, u)
	}
	vi, ok := g.index[v]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, v)
	}
	g.updateArc(ui, vi, fn)
	return nil
}

func (g *Graph[K, N, E]) updateArc(ui, vi int, fn func(E, bool) E) {
	if ai, ok := g.pairs[[2]int{ui, vi}]; ok {
		g.arcs[ai].Attr = fn(g.arcs[ai].Attr, true)
		return
	}
	var zero E
	ai := len(g.arcs)
	g.arcs = append(g.arcs, Arc[E]{From: ui, To: vi, Attr: fn(zero, false)})
	g.pairs[[2]int{ui, vi}] = ai
	g.out[ui] = append(g.out[ui], ai)
	g.in[vi] = append(g.in[vi], ai)
}

func (g *Graph[K, N, E]) Edge(u, v K) (E, bool) {
	var zero E
	ui, ok := g.index[u]
	if !ok {
		return zero, false
	}
	vi, ok := g.index[v]
	if !ok {
		return zero, false
	}
	ai, ok := g.pairs[[2]int{ui, vi}]
	if !ok {
		return zero, false
	}
	return g.arcs[ai].Attr, true
}

// HasArc reports whether the arc i->j exists.
func (g *Graph[K, N, E]) HasArc(i, j int) bool {
	_, ok := g.pairs[[2]int{i, j}]
	return ok
}

// Out yields the successors of node i with the arc attributes.
func (g *Graph[K, N, E]) Out(i int) iter.Seq2[int, E] {
	return func(yield func(int, E) bool) {
		for _, ai := range g.out[i] {
			if !yield(g.arcs[ai].To, g.arcs[ai].Attr) {
				return
			}
		}
	}
}

// In yields the predecessors of node i with the arc attributes.
func (g *Graph[K, N, E]) In(i int) iter.Seq2[int, E] {
	return func(yield func(int, E) bool) {
		for _, ai := range g.in[i] {
			if !yield(g.arcs[ai].From, g.arcs[ai].Attr) {
				return
			}
		}
	}
}

// Neighbors returns the sorted, deduplicated union of predecessors and
// successors of node i, ignoring direction.
func (g *Graph[K, N, E]) Neighbors(i int) []int {
	nb := make([]int, 0, len(g.out[i])+len(g.in[i]))
	for _, ai := range g.out[i] {
		nb = append(nb, g.arcs[ai].To)
	}
	for _, ai := range g.in[i] {
		nb = append(nb, g.arcs[ai].From)
	}
	slices.Sort(nb)
	nb = slices.Compact(nb)
	// self loops are not neighbors
	if j, found := slices.BinarySearch(nb, i); found {
		nb = slices.Delete(nb, j, j+1)
	}
	return nb
}

// Degree is the total number of incident arcs of node i (in + out).
func (g *Graph[K, N, E]) Degree(i int) int {
	return len(g.out[i]) + len(g.in[i])
}

func (g *Graph[K, N, E]) OutDegreeAt(i int) int { return len(g.out[i]) }
func (g *Graph[K, N, E]) InDegreeAt(i int) int  { return len(g.in[i]) }

func (g *Graph[K, N, E]) OutDegree(k K) int {
	i, ok := g.index[k]
	if !ok {
		return 0
	}
	return len(g.out[i])
}

func (g *Graph[K, N, E]) InDegree(k K) int {
	i, ok := g.index[k]
	if !ok {
		return 0
	}
	return len(g.in[i])
}

// Induced returns the subgraph induced by the given node indices. Nodes are
// re-keyed 0..len(indices)-1 in ascending order of their source index and
// carry copies of their attributes. Arcs keep their relative insertion order.
func (g *Graph[K, N, E]) Induced(indices []int) (*Graph[int, N, E], error) {
	sorted := slices.Clone(indices)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	sub := New[int, N, E]()
	remap := make(map[int]int, len(sorted))
	for pos, i := range sorted {
		if i < 0 || i >= len(g.nodes) {
			return nil, fmt.Errorf("%w: %d", ErrIndexRange, i)
		}
		sub.AddNode(pos, g.nodes[i])
		remap[i] = pos
	}

	for _, a := range g.arcs {
		from, okFrom := remap[a.From]
		to, okTo := remap[a.To]
		if !okFrom || !okTo {
			continue
		}
		sub.updateArc(from, to, func(E, bool) E { return a.Attr })
	}
	return sub, nil
}

// Clone returns a structural copy of g. Attributes are copied by value.
func (g *Graph[K, N, E]) Clone() *Graph[K, N, E] {
	c, _ := Map(g, func(n N) (N, error) { return n, nil }, func(e E) (E, error) { return e, nil })
	return c
}

// Map builds a new graph with the same keys and arcs as g, transforming every
// node and arc attribute. The first transformation error aborts the mapping.
func Map[K comparable, N, E, N2, E2 any](
	g *Graph[K, N, E],
	nodeFn func(N) (N2, error),
	edgeFn func(E) (E2, error),
) (*Graph[K, N2, E2], error) {
	m := New[K, N2, E2]()
	for i, k := range g.keys {
		n, err := nodeFn(g.nodes[i])
		if err != nil {
			return nil, fmt.Errorf("failed to map node %v: %w", k, err)
		}
		m.AddNode(k, n)
	}
	for _, a := range g.arcs {
		e, err := edgeFn(a.Attr)
		if err != nil {
			return nil, fmt.Errorf("failed to map edge %v->%v: %w", g.keys[a.From], g.keys[a.To], err)
		}
		m.updateArc(a.From, a.To, func(E2, bool) E2 { return e })
	}
	return m, nil
}
