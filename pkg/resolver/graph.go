// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package resolver implements the version-resolution substrate of a Python
// package manager: a mutable dependency graph together with a reversible
// action log that supports chronological backtracking over candidate
// assignments.
//
// The graph tracks one Vertex per package name; Edges are directed
// requirement links between vertices.  All mutation during a resolution
// attempt goes through the Log, which records each mutation as a reversible
// Action so that the driving solver can tag checkpoints and rewind to them
// when it hits a conflict.
package resolver

import (
	"fmt"
	"reflect"

	"k8s.io/apimachinery/pkg/util/sets"
)

// A Vertex is one package placement in the resolution graph.
//
// The vertex owns its adjacency lists; an Edge appears in both of its
// endpoints' lists but is not independently owned by either.
type Vertex struct {
	Name string

	// Payload is the resolved package/version value, or nil while the
	// package is still undecided.
	Payload interface{}

	// Root is true for vertices seeded directly from the top-level request.
	// It is set monotonically; only undoing the Action that set it clears it.
	Root bool

	OutgoingEdges []*Edge
	IncomingEdges []*Edge

	// ExplicitRequirements are requirements attached directly to the vertex
	// (top-level constraints), independent of any incoming edge.
	ExplicitRequirements []interface{}
}

// An Edge is a directed requirement link between two vertices.  Two edges are
// considered the same edge if they agree on origin and destination; the
// requirement is deliberately not part of that identity.
type Edge struct {
	Origin      *Vertex
	Destination *Vertex
	Requirement interface{}
}

func (e *Edge) sameEndpoints(o *Edge) bool {
	return e.Origin == o.Origin && e.Destination == o.Destination
}

// Requirements returns the requirements that apply to this vertex: the
// requirement of every incoming edge followed by the explicit requirements,
// deduplicated with first-seen-wins ordering.
func (v *Vertex) Requirements() []interface{} {
	var ret []interface{}
	appendUnique := func(req interface{}) {
		for _, have := range ret {
			if reflect.DeepEqual(have, req) {
				return
			}
		}
		ret = append(ret, req)
	}
	for _, edge := range v.IncomingEdges {
		appendUnique(edge.Requirement)
	}
	for _, req := range v.ExplicitRequirements {
		appendUnique(req)
	}
	return ret
}

// Predecessors returns the origin vertex of every incoming edge.
func (v *Vertex) Predecessors() []*Vertex {
	ret := make([]*Vertex, 0, len(v.IncomingEdges))
	for _, edge := range v.IncomingEdges {
		ret = append(ret, edge.Origin)
	}
	return ret
}

// Successors returns the destination vertex of every outgoing edge.
func (v *Vertex) Successors() []*Vertex {
	ret := make([]*Vertex, 0, len(v.OutgoingEdges))
	for _, edge := range v.OutgoingEdges {
		ret = append(ret, edge.Destination)
	}
	return ret
}

// RecursiveSuccessors returns the transitive closure of Successors.  It
// terminates on cyclic graphs; the receiver itself is included only if it is
// reachable from one of its successors.
func (v *Vertex) RecursiveSuccessors() []*Vertex {
	var ret []*Vertex
	seen := sets.NewString()
	var walk func(*Vertex)
	walk = func(cur *Vertex) {
		for _, next := range cur.Successors() {
			if seen.Has(next.Name) {
				continue
			}
			seen.Insert(next.Name)
			ret = append(ret, next)
			walk(next)
		}
	}
	walk(v)
	return ret
}

// RecursivePredecessors returns the transitive closure of Predecessors, with
// the same cycle behavior as RecursiveSuccessors.
func (v *Vertex) RecursivePredecessors() []*Vertex {
	var ret []*Vertex
	seen := sets.NewString()
	var walk func(*Vertex)
	walk = func(cur *Vertex) {
		for _, prev := range cur.Predecessors() {
			if seen.Has(prev.Name) {
				continue
			}
			seen.Insert(prev.Name)
			ret = append(ret, prev)
			walk(prev)
		}
	}
	walk(v)
	return ret
}

// EquivalentTo reports value-equality over (name, payload, successor-set).
// It exists for tests and diagnostics only; vertex identity everywhere else
// is the name key in the owning Graph.
func (v *Vertex) EquivalentTo(o *Vertex) bool {
	if v.Name != o.Name || !reflect.DeepEqual(v.Payload, o.Payload) {
		return false
	}
	mine := sets.NewString()
	for _, succ := range v.Successors() {
		mine.Insert(succ.Name)
	}
	theirs := sets.NewString()
	for _, succ := range o.Successors() {
		theirs.Insert(succ.Name)
	}
	return mine.Equal(theirs)
}

// A Graph is the resolution graph for one resolution attempt.  It owns the
// name-keyed vertex mapping and an embedded Log; the convention (not enforced
// structurally) is that the solver mutates the graph only through the logged
// methods so that every mutation is reversible.
type Graph struct {
	// Vertices is mutated only through Actions, by convention.
	Vertices map[string]*Vertex

	log Log
}

func NewGraph() *Graph {
	return &Graph{
		Vertices: make(map[string]*Vertex),
	}
}

// VertexNamed returns the vertex with the given name, or an error if there is
// no such vertex.  Actions use it to resolve edge endpoints; an absent
// endpoint is a programmer error in the driving solver.
func (g *Graph) VertexNamed(name string) (*Vertex, error) {
	vertex, ok := g.Vertices[name]
	if !ok {
		return nil, fmt.Errorf("resolver: no vertex named %q", name)
	}
	return vertex, nil
}

// An unlink records one edge removal performed during a cascade detach, with
// enough position information that undoing the removals in reverse order
// restores every adjacency list to its exact prior state.
type unlink struct {
	vertex   *Vertex
	incoming bool // which of vertex's lists the edge was removed from
	index    int
	edge     *Edge
}

// DetachVertexNamed removes the named vertex from the graph.  Each outgoing
// edge is unlinked from its destination's incoming list, and a destination
// left with no incoming edges (and not marked Root) is recursively detached
// as well; this garbage-collects dependents that just became unreachable.
// Incoming edges are unlinked from their origins' outgoing lists without any
// upward cascade.
//
// The returned slice lists every removed vertex, the named one first.
// Detaching a name with no vertex is not an error; it returns nil.
func (g *Graph) DetachVertexNamed(name string) []*Vertex {
	removed, _ := g.detachVertexNamed(name)
	return removed
}

func (g *Graph) detachVertexNamed(name string) ([]*Vertex, []unlink) {
	vertex, ok := g.Vertices[name]
	if !ok {
		return nil, nil
	}
	delete(g.Vertices, name)

	removed := []*Vertex{vertex}
	var trail []unlink
	for _, edge := range vertex.OutgoingEdges {
		dst := edge.Destination
		idx := indexOfEdge(dst.IncomingEdges, edge)
		if idx < 0 {
			continue // endpoint already detached further up the cascade
		}
		trail = append(trail, unlink{vertex: dst, incoming: true, index: idx, edge: edge})
		dst.IncomingEdges = append(dst.IncomingEdges[:idx], dst.IncomingEdges[idx+1:]...)
		if len(dst.IncomingEdges) == 0 && !dst.Root {
			subRemoved, subTrail := g.detachVertexNamed(dst.Name)
			removed = append(removed, subRemoved...)
			trail = append(trail, subTrail...)
		}
	}
	for _, edge := range vertex.IncomingEdges {
		org := edge.Origin
		idx := indexOfEdge(org.OutgoingEdges, edge)
		if idx < 0 {
			continue
		}
		trail = append(trail, unlink{vertex: org, incoming: false, index: idx, edge: edge})
		org.OutgoingEdges = append(org.OutgoingEdges[:idx], org.OutgoingEdges[idx+1:]...)
	}
	return removed, trail
}

// indexOfEdge finds an edge by identity, not by endpoint equality; during a
// cascade the same *Edge value is shared by both endpoint lists.
func indexOfEdge(edges []*Edge, edge *Edge) int {
	for i, have := range edges {
		if have == edge {
			return i
		}
	}
	return -1
}

func insertEdgeAt(edges []*Edge, index int, edge *Edge) []*Edge {
	edges = append(edges, nil)
	copy(edges[index+1:], edges[index:])
	edges[index] = edge
	return edges
}
