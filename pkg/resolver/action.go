// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"fmt"
)

// An Action is one reversible graph mutation recorded by the Log.  The set of
// actions is closed: exactly the six variants defined in this file.  Each
// variant's revert undoes precisely the observable effect of its paired
// apply, assuming the touched vertices and edges have not been mutated in
// between; the Log's strict LIFO discipline is what guarantees that
// assumption.
type Action interface {
	apply(g *Graph) (interface{}, error)
	revert(g *Graph)
}

// tagAction is a pure checkpoint marker; both apply and revert are no-ops.
type tagAction struct {
	label string
}

func (a *tagAction) apply(_ *Graph) (interface{}, error) { return nil, nil }
func (a *tagAction) revert(_ *Graph)                     {}

// addVertex creates the named vertex, or updates it if it already exists.
// The payload is first-write-wins: an existing non-nil payload is never
// overwritten.  The root flag is ORed monotonically.  (In the original
// design "unset" and "falsy" payloads were indistinguishable; here nil is
// the one and only unset value, so that hazard collapses.)
type addVertex struct {
	name    string
	payload interface{}
	root    bool

	// undo snapshot
	existed    bool
	oldPayload interface{}
	oldRoot    bool
}

func (a *addVertex) apply(g *Graph) (interface{}, error) {
	if vertex, ok := g.Vertices[a.name]; ok {
		a.existed = true
		a.oldPayload = vertex.Payload
		a.oldRoot = vertex.Root
		if vertex.Payload == nil {
			vertex.Payload = a.payload
		}
		vertex.Root = vertex.Root || a.root
		return vertex, nil
	}
	vertex := &Vertex{
		Name:    a.name,
		Payload: a.payload,
		Root:    a.root,
	}
	g.Vertices[a.name] = vertex
	return vertex, nil
}

func (a *addVertex) revert(g *Graph) {
	if !a.existed {
		delete(g.Vertices, a.name)
		return
	}
	if vertex, ok := g.Vertices[a.name]; ok {
		vertex.Payload = a.oldPayload
		vertex.Root = a.oldRoot
	}
}

// addEdgeNoCircular links origin to destination.  Despite the name it
// performs no cycle check; detecting circularity before requesting the edge
// is the solver's job (see resolution.go), and this action trusts that the
// check already happened.
type addEdgeNoCircular struct {
	origin      string
	destination string
	requirement interface{}

	edge *Edge // set by apply, consumed by revert
}

func (a *addEdgeNoCircular) apply(g *Graph) (interface{}, error) {
	origin, err := g.VertexNamed(a.origin)
	if err != nil {
		return nil, err
	}
	destination, err := g.VertexNamed(a.destination)
	if err != nil {
		return nil, err
	}
	edge := &Edge{
		Origin:      origin,
		Destination: destination,
		Requirement: a.requirement,
	}
	origin.OutgoingEdges = append(origin.OutgoingEdges, edge)
	destination.IncomingEdges = append(destination.IncomingEdges, edge)
	a.edge = edge
	return edge, nil
}

func (a *addEdgeNoCircular) revert(g *Graph) {
	// remove by identity, not endpoint equality: a parallel edge with the
	// same endpoints may predate this one, and it must survive the revert
	removeEdgeByIdentity(&a.edge.Origin.OutgoingEdges, a.edge)
	removeEdgeByIdentity(&a.edge.Destination.IncomingEdges, a.edge)
}

// deleteEdge removes the first edge with the given endpoints from both
// adjacency lists.  Its revert re-inserts the edge at the exact list
// positions apply removed it from, so that edge order (which Successors and
// Requirements observe) survives the round trip.
type deleteEdge struct {
	origin      string
	destination string
	requirement interface{}

	// undo snapshot
	edge     *Edge
	outIndex int
	inIndex  int
}

func (a *deleteEdge) apply(g *Graph) (interface{}, error) {
	origin, err := g.VertexNamed(a.origin)
	if err != nil {
		return nil, err
	}
	destination, err := g.VertexNamed(a.destination)
	if err != nil {
		return nil, err
	}
	probe := &Edge{Origin: origin, Destination: destination, Requirement: a.requirement}
	outIndex := indexOfEqualEdge(origin.OutgoingEdges, probe)
	if outIndex < 0 {
		return nil, fmt.Errorf("resolver: no edge %q -> %q", a.origin, a.destination)
	}
	edge := origin.OutgoingEdges[outIndex]
	origin.OutgoingEdges = append(origin.OutgoingEdges[:outIndex], origin.OutgoingEdges[outIndex+1:]...)
	inIndex := indexOfEdge(destination.IncomingEdges, edge)
	if inIndex >= 0 {
		destination.IncomingEdges = append(destination.IncomingEdges[:inIndex], destination.IncomingEdges[inIndex+1:]...)
	}
	a.edge, a.outIndex, a.inIndex = edge, outIndex, inIndex
	return edge, nil
}

func (a *deleteEdge) revert(_ *Graph) {
	a.edge.Origin.OutgoingEdges = insertEdgeAt(a.edge.Origin.OutgoingEdges, a.outIndex, a.edge)
	if a.inIndex >= 0 {
		a.edge.Destination.IncomingEdges = insertEdgeAt(a.edge.Destination.IncomingEdges, a.inIndex, a.edge)
	}
}

// indexOfEqualEdge finds the first edge with the same endpoints as probe, or
// -1 if there is none.
func indexOfEqualEdge(edges []*Edge, probe *Edge) int {
	for i, have := range edges {
		if have.sameEndpoints(probe) {
			return i
		}
	}
	return -1
}

func removeEdgeByIdentity(edges *[]*Edge, edge *Edge) {
	if idx := indexOfEdge(*edges, edge); idx >= 0 {
		*edges = append((*edges)[:idx], (*edges)[idx+1:]...)
	}
}

// detachVertexNamed removes the named vertex and cascades to dependents left
// unreachable, per Graph.DetachVertexNamed.  The whole cascade is recorded in
// the action, so revert restores every removed vertex and re-inserts every
// unlinked edge at its original list position.
type detachVertexNamed struct {
	name string

	removed []*Vertex
	trail   []unlink
}

func (a *detachVertexNamed) apply(g *Graph) (interface{}, error) {
	a.removed, a.trail = g.detachVertexNamed(a.name)
	return a.removed, nil
}

func (a *detachVertexNamed) revert(g *Graph) {
	for _, vertex := range a.removed {
		g.Vertices[vertex.Name] = vertex
	}
	for i := len(a.trail) - 1; i >= 0; i-- {
		u := a.trail[i]
		if u.incoming {
			u.vertex.IncomingEdges = insertEdgeAt(u.vertex.IncomingEdges, u.index, u.edge)
		} else {
			u.vertex.OutgoingEdges = insertEdgeAt(u.vertex.OutgoingEdges, u.index, u.edge)
		}
	}
}

// setPayload overwrites the named vertex's payload unconditionally,
// snapshotting the old value for undo.
type setPayload struct {
	name    string
	payload interface{}

	oldPayload interface{}
}

func (a *setPayload) apply(g *Graph) (interface{}, error) {
	vertex, err := g.VertexNamed(a.name)
	if err != nil {
		return nil, err
	}
	a.oldPayload = vertex.Payload
	vertex.Payload = a.payload
	return nil, nil
}

func (a *setPayload) revert(g *Graph) {
	if vertex, ok := g.Vertices[a.name]; ok {
		vertex.Payload = a.oldPayload
	}
}
