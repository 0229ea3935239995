// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"context"
)

// Provider is the external collaborator that supplies the solver with
// package knowledge.  Requirements and packages are opaque to this package;
// the provider is the only party that understands their insides.
//
// A provider may return *OverrideNeeded from DependenciesFor when a package
// exposes mutually exclusive requirement sets; the solver passes it through
// untouched for the orchestrator to act on.
type Provider interface {
	// NameFor returns the graph key for a requirement or package.
	NameFor(item interface{}) string

	// SearchFor returns the candidate packages satisfying the requirement,
	// sorted so the most-preferred candidate is last.
	SearchFor(ctx context.Context, requirement interface{}) ([]interface{}, error)

	// DependenciesFor returns the requirements of a package, or nil if it
	// has none.
	DependenciesFor(ctx context.Context, pkg interface{}) ([]interface{}, error)

	// IsRequirementSatisfiedBy reports whether the package satisfies the
	// requirement.
	IsRequirementSatisfiedBy(requirement, pkg interface{}) bool

	// Debug emits a depth-indented trace message.
	Debug(ctx context.Context, message string, depth int)
}

// OverridableProvider is a Provider that can be re-scoped with a chosen
// override set, mapping package names to substituted requirements.  The
// orchestrator uses it to retry a resolution after an OverrideNeeded signal.
type OverridableProvider interface {
	Provider

	WithOverrides(overrides map[string]interface{}) OverridableProvider
}
