// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"fmt"
)

// A Log is the LIFO sequence of Actions applied to a Graph, with support for
// named checkpoints and rewinding.  Push applies an action immediately; Pop
// reverts and permanently discards the tip (there is no redo).  Access is
// strictly last-in-first-out.
type Log struct {
	actions []Action
}

// Push applies the action to the graph and, on success, records it as the new
// tip of the log.  It returns the action's apply-result.
func (l *Log) Push(g *Graph, action Action) (interface{}, error) {
	result, err := action.apply(g)
	if err != nil {
		return nil, err
	}
	l.actions = append(l.actions, action)
	return result, nil
}

// Pop reverts the tip action, removes it from the log, and returns it.  It
// returns nil when the log is empty.
func (l *Log) Pop(g *Graph) Action {
	if len(l.actions) == 0 {
		return nil
	}
	tip := l.actions[len(l.actions)-1]
	tip.revert(g)
	l.actions = l.actions[:len(l.actions)-1]
	return tip
}

// Tag pushes a checkpoint marker.  The same label may be tagged again after a
// rewind consumes it.
func (l *Log) Tag(g *Graph, label string) {
	// a tag never fails to apply
	_, _ = l.Push(g, &tagAction{label: label})
}

// RewindTo pops actions (reverting each) until the popped action is the Tag
// with the given label.  Rewinding to a label that is not in the log is a
// hard error: the log is emptied and every action it held is reverted before
// the error is reported.
func (l *Log) RewindTo(g *Graph, label string) error {
	for {
		popped := l.Pop(g)
		if popped == nil {
			return fmt.Errorf("resolver: rewind: no tag %q in the log", label)
		}
		if tag, ok := popped.(*tagAction); ok && tag.label == label {
			return nil
		}
	}
}

// Len returns the number of actions currently in the log.
func (l *Log) Len() int {
	return len(l.actions)
}

// AddVertex pushes an action that creates or updates the named vertex, and
// returns the vertex.
func (l *Log) AddVertex(g *Graph, name string, payload interface{}, root bool) *Vertex {
	// addVertex cannot fail
	result, _ := l.Push(g, &addVertex{name: name, payload: payload, root: root})
	return result.(*Vertex)
}

// AddEdgeNoCircular pushes an action linking origin to destination.  No
// cycle check is performed here; the caller is responsible for detecting
// circularity first.
func (l *Log) AddEdgeNoCircular(g *Graph, origin, destination string, requirement interface{}) (*Edge, error) {
	result, err := l.Push(g, &addEdgeNoCircular{
		origin:      origin,
		destination: destination,
		requirement: requirement,
	})
	if err != nil {
		return nil, err
	}
	return result.(*Edge), nil
}

// DeleteEdge pushes an action removing the first edge between origin and
// destination, and returns the removed edge.
func (l *Log) DeleteEdge(g *Graph, origin, destination string, requirement interface{}) (*Edge, error) {
	result, err := l.Push(g, &deleteEdge{
		origin:      origin,
		destination: destination,
		requirement: requirement,
	})
	if err != nil {
		return nil, err
	}
	return result.(*Edge), nil
}

// DetachVertexNamed pushes an action removing the named vertex (cascading to
// dependents left unreachable) and returns the removed vertices, the named
// one first.  Detaching an absent name is a no-op returning nil.
func (l *Log) DetachVertexNamed(g *Graph, name string) []*Vertex {
	result, _ := l.Push(g, &detachVertexNamed{name: name})
	removed, _ := result.([]*Vertex)
	return removed
}

// SetPayload pushes an action overwriting the named vertex's payload.
func (l *Log) SetPayload(g *Graph, name string, payload interface{}) error {
	_, err := l.Push(g, &setPayload{name: name, payload: payload})
	return err
}

// The logged convenience methods below mirror the Log API on the Graph's own
// embedded log, so that a caller holding just the Graph keeps the
// everything-through-the-Log discipline.

func (g *Graph) AddVertex(name string, payload interface{}, root bool) *Vertex {
	return g.log.AddVertex(g, name, payload, root)
}

func (g *Graph) AddEdgeNoCircular(origin, destination string, requirement interface{}) (*Edge, error) {
	return g.log.AddEdgeNoCircular(g, origin, destination, requirement)
}

func (g *Graph) DeleteEdge(origin, destination string, requirement interface{}) (*Edge, error) {
	return g.log.DeleteEdge(g, origin, destination, requirement)
}

func (g *Graph) SetPayload(name string, payload interface{}) error {
	return g.log.SetPayload(g, name, payload)
}

func (g *Graph) Tag(label string) {
	g.log.Tag(g, label)
}

func (g *Graph) Pop() Action {
	return g.log.Pop(g)
}

func (g *Graph) RewindTo(label string) error {
	return g.log.RewindTo(g, label)
}

// Log returns the graph's own action log, for callers that need the full
// Push/Pop surface (such as logged cascade detaches).
func (g *Graph) Log() *Log {
	return &g.log
}
