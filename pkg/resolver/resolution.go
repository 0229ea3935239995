// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"context"
	"errors"
	"fmt"
)

const initialStateTag = "initial_state"

// A Resolver drives resolution attempts: it owns the provider and UI, and
// each call to Resolve runs one attempt over a fresh graph.
type Resolver struct {
	provider Provider
	ui       *UI
}

func NewResolver(provider Provider, ui *UI) *Resolver {
	if ui == nil {
		ui = &UI{}
	}
	return &Resolver{
		provider: provider,
		ui:       ui,
	}
}

// Resolve resolves the requested requirements into a dependency graph whose
// vertex payloads are the chosen packages.
//
// Constraint conflicts are handled internally by rewinding the graph's
// action log to the last checkpoint with an untried candidate.  When the
// search space is exhausted the error is a *SolverProblemError.  When the
// provider signals *OverrideNeeded it is returned unchanged, for the caller
// to retry with a chosen override (see ResolveWithOverrides).
func (r *Resolver) Resolve(ctx context.Context, requested []interface{}) (*Graph, error) {
	res := &resolution{
		provider: r.provider,
		ui:       r.ui,
	}
	return res.resolve(ctx, requested)
}

// ResolveWithOverrides drives Resolve, and on an OverrideNeeded signal
// retries once per proposed override set, in call order, returning the first
// attempt that succeeds.
func ResolveWithOverrides(
	ctx context.Context,
	provider OverridableProvider,
	ui *UI,
	requested []interface{},
) (*Graph, error) {
	graph, err := NewResolver(provider, ui).Resolve(ctx, requested)
	var needed *OverrideNeeded
	if errors.As(err, &needed) {
		for _, override := range needed.Overrides() {
			graph, err = ResolveWithOverrides(ctx, provider.WithOverrides(override), ui, requested)
			if err == nil {
				return graph, nil
			}
		}
	}
	return graph, err
}

// pendingRequirement is one requirement waiting to be processed, together
// with the vertex that required it ("" for the top-level request).
type pendingRequirement struct {
	requirement interface{}
	origin      string
}

// possibilityState is one decision point of the search: the requirement that
// forced a package choice, the candidates not yet tried (most-preferred
// last), the pending-requirement queue as it stood when the decision was
// made, and the log tag to rewind to when retrying.
type possibilityState struct {
	pending       pendingRequirement
	name          string
	possibilities []interface{}
	savedQueue    []pendingRequirement
	tag           string
}

// resolution is the state of one resolution attempt.
type resolution struct {
	provider Provider
	ui       *UI

	graph      *Graph
	states     []*possibilityState
	queue      []pendingRequirement
	iterations int
}

func (r *resolution) debug(message string) {
	r.ui.Debug(message, len(r.states))
}

func (r *resolution) resolve(ctx context.Context, requested []interface{}) (_ *Graph, err error) {
	r.ui.BeforeResolution()
	defer r.ui.AfterResolution()
	r.debug(fmt.Sprintf("Starting resolution (%d requested dependencies)", len(requested)))
	defer func() {
		r.debug(fmt.Sprintf("Finished resolution (%d steps)", r.iterations))
	}()

	r.graph = NewGraph()
	for _, req := range requested {
		vertex := r.graph.AddVertex(r.provider.NameFor(req), nil, true)
		vertex.ExplicitRequirements = append(vertex.ExplicitRequirements, req)
		r.queue = append(r.queue, pendingRequirement{requirement: req})
	}
	r.graph.Tag(initialStateTag)

	for len(r.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.iterations++
		r.ui.IndicateProgress()

		pending := r.queue[0]
		r.queue = r.queue[1:]
		if err := r.processRequirement(ctx, pending); err != nil {
			if !isConflict(err) {
				return nil, err
			}
			if uerr := r.unwindForConflict(ctx, err); uerr != nil {
				if !isConflict(uerr) {
					// an infrastructure failure or OverrideNeeded that
					// surfaced mid-unwind, not search exhaustion
					return nil, uerr
				}
				return nil, &SolverProblemError{Cause: uerr}
			}
		}
	}
	return r.graph, nil
}

func (r *resolution) processRequirement(ctx context.Context, pending pendingRequirement) error {
	name := r.provider.NameFor(pending.requirement)

	if vertex, ok := r.graph.Vertices[name]; ok && vertex.Payload != nil {
		// Already activated; the requirement either agrees with the chosen
		// package or conflicts with it.
		if !r.provider.IsRequirementSatisfiedBy(pending.requirement, vertex.Payload) {
			r.debug(fmt.Sprintf("Requirement %v conflicts with activated %v",
				pending.requirement, vertex.Payload))
			return &VersionConflictError{
				Name:         name,
				Requirements: append(vertex.Requirements(), pending.requirement),
			}
		}
		if pending.origin == "" {
			return nil
		}
		return r.attachEdge(pending, name)
	}

	possibilities, err := r.provider.SearchFor(ctx, pending.requirement)
	if err != nil {
		return err
	}
	r.debug(fmt.Sprintf("Creating possibility state for %v (%d remaining)",
		pending.requirement, len(possibilities)))
	state := &possibilityState{
		pending:       pending,
		name:          name,
		possibilities: possibilities,
		savedQueue:    append([]pendingRequirement(nil), r.queue...),
		tag:           fmt.Sprintf("state-%d-%s", len(r.states), name),
	}
	r.states = append(r.states, state)
	r.graph.Tag(state.tag)
	return r.attemptToActivate(ctx, state)
}

func (r *resolution) attemptToActivate(ctx context.Context, state *possibilityState) error {
	if len(state.possibilities) == 0 {
		if requiredBy := state.pending.origin; requiredBy != "" {
			return &NoSuchDependencyError{
				Requirement: state.pending.requirement,
				RequiredBy:  []string{requiredBy},
			}
		}
		return &NoSuchDependencyError{Requirement: state.pending.requirement}
	}
	candidate := state.possibilities[len(state.possibilities)-1]
	state.possibilities = state.possibilities[:len(state.possibilities)-1]
	r.debug(fmt.Sprintf("Attempting to activate %v", candidate))

	vertex := r.graph.AddVertex(state.name, candidate, false)
	if state.pending.origin != "" {
		if err := r.attachEdge(state.pending, state.name); err != nil {
			return err
		}
	}
	for _, req := range vertex.Requirements() {
		if !r.provider.IsRequirementSatisfiedBy(req, candidate) {
			r.debug(fmt.Sprintf("Candidate %v unsatisfies %v", candidate, req))
			return &VersionConflictError{
				Name:         state.name,
				Requirements: vertex.Requirements(),
			}
		}
	}

	deps, err := NewDependencies(candidate, r.provider).Dependencies(ctx)
	if err != nil {
		return err
	}
	for _, dep := range deps {
		r.queue = append(r.queue, pendingRequirement{requirement: dep, origin: state.name})
	}
	return nil
}

// attachEdge adds the requirement edge, performing the circularity check
// that AddEdgeNoCircular deliberately does not: if the requiring vertex is
// reachable from the required one, the edge would close a cycle.
func (r *resolution) attachEdge(pending pendingRequirement, name string) error {
	destination, err := r.graph.VertexNamed(name)
	if err != nil {
		return err
	}
	if pending.origin == name {
		return &CircularDependencyError{Vertices: []*Vertex{destination}}
	}
	for _, succ := range destination.RecursiveSuccessors() {
		if succ.Name == pending.origin {
			return &CircularDependencyError{Vertices: []*Vertex{succ, destination}}
		}
	}
	_, err = r.graph.AddEdgeNoCircular(pending.origin, name, pending.requirement)
	return err
}

// unwindForConflict rewinds to the most recent decision point that still has
// an untried candidate and resumes from there.  It returns the conflict when
// every decision point is exhausted; that is terminal.
func (r *resolution) unwindForConflict(ctx context.Context, conflict error) error {
	r.debug(fmt.Sprintf("Unwinding for conflict: %v", conflict))
	for len(r.states) > 0 {
		state := r.states[len(r.states)-1]
		if len(state.possibilities) == 0 {
			if err := r.graph.RewindTo(state.tag); err != nil {
				return err
			}
			r.states = r.states[:len(r.states)-1]
			continue
		}
		if err := r.graph.RewindTo(state.tag); err != nil {
			return err
		}
		r.graph.Tag(state.tag) // the tag is reusable after a rewind consumes it
		r.queue = append([]pendingRequirement(nil), state.savedQueue...)
		err := r.attemptToActivate(ctx, state)
		if err == nil {
			return nil
		}
		if !isConflict(err) {
			return err
		}
		conflict = err
	}
	return conflict
}

// isConflict reports whether the error is a constraint conflict that
// rewinding may fix, as opposed to an infrastructure failure or an
// OverrideNeeded escalation.
func isConflict(err error) bool {
	var (
		versionConflict *VersionConflictError
		circular        *CircularDependencyError
		noSuch          *NoSuchDependencyError
	)
	return errors.As(err, &versionConflict) ||
		errors.As(err, &circular) ||
		errors.As(err, &noSuch)
}
