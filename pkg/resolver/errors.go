// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"fmt"
	"strings"
)

// SolverProblemError is the only terminal-failure type that escapes a
// resolution attempt: it wraps whatever condition exhausted the search.
// Everything else is either handled internally by rewinding, or is an
// OverrideNeeded escalation.
type SolverProblemError struct {
	Cause error
}

func (e *SolverProblemError) Error() string {
	return e.Cause.Error()
}

func (e *SolverProblemError) Unwrap() error {
	return e.Cause
}

// OverrideNeeded is raised by a provider when a package exposes mutually
// exclusive requirement sets for one of its dependencies, so no single
// dependency list can be handed to the solver.  It is not a failure: it asks
// the orchestrator to retry the resolution once per proposed override.  It
// implements error only so that it can travel up the call stack.
type OverrideNeeded struct {
	overrides []map[string]interface{}
}

// NewOverrideNeeded builds the signal from the proposed override sets, which
// are kept in call order, unmodified.
func NewOverrideNeeded(overrides ...map[string]interface{}) *OverrideNeeded {
	return &OverrideNeeded{overrides: overrides}
}

// Overrides returns the proposed override sets in the order they were given.
func (e *OverrideNeeded) Overrides() []map[string]interface{} {
	return e.overrides
}

func (e *OverrideNeeded) Error() string {
	return fmt.Sprintf("resolution needs one of %d dependency overrides", len(e.overrides))
}

// NoSuchDependencyError reports a requirement for which the provider has no
// candidate at all.
type NoSuchDependencyError struct {
	Requirement interface{}
	RequiredBy  []string
}

func (e *NoSuchDependencyError) Error() string {
	msg := fmt.Sprintf("unable to find a specification for %v", e.Requirement)
	if len(e.RequiredBy) > 0 {
		quoted := make([]string, 0, len(e.RequiredBy))
		for _, name := range e.RequiredBy {
			quoted = append(quoted, fmt.Sprintf("%q", name))
		}
		msg += " depended upon by " + strings.Join(quoted, " and ")
	}
	return msg
}

// CircularDependencyError reports that activating a candidate would close a
// dependency cycle.  The solver treats it as a conflict and unwinds.
type CircularDependencyError struct {
	Vertices []*Vertex
}

func (e *CircularDependencyError) Error() string {
	names := make([]string, 0, len(e.Vertices))
	for _, vertex := range e.Vertices {
		names = append(names, vertex.Name)
	}
	return "there is a circular dependency between " + strings.Join(names, " and ")
}

// VersionConflictError reports the requirements that could not be satisfied
// together once the search space was exhausted.
type VersionConflictError struct {
	Name         string
	Requirements []interface{}
}

func (e *VersionConflictError) Error() string {
	lines := make([]string, 0, len(e.Requirements))
	for _, req := range e.Requirements {
		lines = append(lines, fmt.Sprintf("- %v", req))
	}
	return fmt.Sprintf("unable to satisfy the requirements on %q:\n%s",
		e.Name, strings.Join(lines, "\n"))
}
