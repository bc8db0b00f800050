// Package procgraph provides a small directed graph for modelling the steps
// of a household process (laundry, dishes, tidying) and the transitions
// between them.
//
// Nodes are keyed by an ordered identifier and carry a caller-chosen value.
// The graph is not safe for concurrent use; callers serialize access.
package procgraph

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrNodeNotFound is returned when an operation names a node that does not exist.
	ErrNodeNotFound = errors.New("procgraph: node not found")

	// ErrNodeExists is returned by AddNode when the identifier is taken.
	ErrNodeExists = errors.New("procgraph: node already exists")
)

// Edge is a directed transition between two nodes.
type Edge[K cmp.Ordered] struct {
	From K `json:"from"`
	To   K `json:"to"`
}

// Graph is a named directed graph with unique node identifiers.
type Graph[K cmp.Ordered, V any] struct {
	name  string
	nodes map[K]V
	out   map[K]map[K]struct{}
	in    map[K]map[K]struct{}
}

// New creates an empty graph.
func New[K cmp.Ordered, V any](name string) *Graph[K, V] {
	return &Graph[K, V]{
		name:  name,
		nodes: make(map[K]V),
		out:   make(map[K]map[K]struct{}),
		in:    make(map[K]map[K]struct{}),
	}
}

// Name returns the graph name.
func (g *Graph[K, V]) Name() string {
	return g.name
}

// Len returns the number of nodes.
func (g *Graph[K, V]) Len() int {
	return len(g.nodes)
}

// HasNode reports whether id is a node of the graph.
func (g *Graph[K, V]) HasNode(id K) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns the value stored for id.
func (g *Graph[K, V]) Node(id K) (V, bool) {
	v, ok := g.nodes[id]
	return v, ok
}

// AddNode inserts a node. Identifiers are unique.
func (g *Graph[K, V]) AddNode(id K, value V) error {
	if g.HasNode(id) {
		return fmt.Errorf("%w: %v", ErrNodeExists, id)
	}
	g.nodes[id] = value
	g.out[id] = make(map[K]struct{})
	g.in[id] = make(map[K]struct{})
	return nil
}

// UpdateNode replaces the value stored for an existing node.
func (g *Graph[K, V]) UpdateNode(id K, value V) error {
	if !g.HasNode(id) {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, id)
	}
	g.nodes[id] = value
	return nil
}

// RenameNode changes a node identifier and carries its edges across.
//
// If newID already exists the two nodes are merged and newID keeps its value.
// Edges between oldID and newID collapse into the merged node and are dropped.
// A self-loop on oldID becomes a self-loop on newID.
func (g *Graph[K, V]) RenameNode(oldID, newID K) error {
	if !g.HasNode(oldID) {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, oldID)
	}
	if oldID == newID {
		return nil
	}

	if !g.HasNode(newID) {
		_ = g.AddNode(newID, g.nodes[oldID])
	}

	selfLoop := g.hasEdge(oldID, oldID)
	succ := slices.Collect(maps.Keys(g.out[oldID]))
	pred := slices.Collect(maps.Keys(g.in[oldID]))
	g.removeNode(oldID)

	for _, s := range succ {
		if s != oldID && s != newID {
			g.link(newID, s)
		}
	}
	for _, p := range pred {
		if p != oldID && p != newID {
			g.link(p, newID)
		}
	}
	if selfLoop {
		g.link(newID, newID)
	}
	return nil
}

// RemoveNode deletes a node and every edge touching it.
func (g *Graph[K, V]) RemoveNode(id K) error {
	if !g.HasNode(id) {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, id)
	}
	g.removeNode(id)
	return nil
}

func (g *Graph[K, V]) removeNode(id K) {
	for s := range g.out[id] {
		delete(g.in[s], id)
	}
	for p := range g.in[id] {
		delete(g.out[p], id)
	}
	delete(g.out, id)
	delete(g.in, id)
	delete(g.nodes, id)
}

// AddEdge adds a directed edge. Both endpoints must already exist; otherwise
// ErrNodeNotFound is returned and the graph is left unchanged. Adding an
// existing edge is a no-op.
func (g *Graph[K, V]) AddEdge(from, to K) error {
	if !g.HasNode(from) {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, from)
	}
	if !g.HasNode(to) {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, to)
	}
	g.link(from, to)
	return nil
}

func (g *Graph[K, V]) link(from, to K) {
	g.out[from][to] = struct{}{}
	g.in[to][from] = struct{}{}
}

// RemoveEdge deletes a directed edge and reports whether it existed.
func (g *Graph[K, V]) RemoveEdge(from, to K) bool {
	if !g.hasEdge(from, to) {
		return false
	}
	delete(g.out[from], to)
	delete(g.in[to], from)
	return true
}

// HasEdge reports whether the edge from -> to exists.
func (g *Graph[K, V]) HasEdge(from, to K) bool {
	return g.hasEdge(from, to)
}

func (g *Graph[K, V]) hasEdge(from, to K) bool {
	_, ok := g.out[from][to]
	return ok
}

// Successors returns the sorted targets of edges leaving id.
func (g *Graph[K, V]) Successors(id K) []K {
	return sortedKeys(g.out[id])
}

// Predecessors returns the sorted sources of edges entering id.
func (g *Graph[K, V]) Predecessors(id K) []K {
	return sortedKeys(g.in[id])
}

// Nodes returns every node identifier in sorted order.
func (g *Graph[K, V]) Nodes() []K {
	return slices.Sorted(maps.Keys(g.nodes))
}

// Edges returns every edge ordered by source then target.
func (g *Graph[K, V]) Edges() []Edge[K] {
	var edges []Edge[K]
	for _, from := range g.Nodes() {
		for _, to := range g.Successors(from) {
			edges = append(edges, Edge[K]{From: from, To: to})
		}
	}
	return edges
}

// All iterates nodes and their values in identifier order.
func (g *Graph[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, id := range g.Nodes() {
			if !yield(id, g.nodes[id]) {
				return
			}
		}
	}
}

// String renders a listing with one line per node:
//
//	graph "laundry"
//	  sort -> wash
//	  wash -> -
func (g *Graph[K, V]) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph %q", g.name)
	for _, id := range g.Nodes() {
		succ := g.Successors(id)
		targets := "-"
		if len(succ) > 0 {
			parts := make([]string, len(succ))
			for i, s := range succ {
				parts[i] = fmt.Sprint(s)
			}
			targets = strings.Join(parts, ", ")
		}
		fmt.Fprintf(&b, "\n  %v -> %s", id, targets)
	}
	return b.String()
}

func sortedKeys[K cmp.Ordered](set map[K]struct{}) []K {
	if len(set) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(set))
}
