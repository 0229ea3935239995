// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"context"
	"fmt"
)

// Dependencies is a lazily-computed view of one package's dependency list,
// scoped to a single (package, provider) pair.  The provider fetch runs at
// most once for the lifetime of the instance, no matter how many times the
// list is read; a nil result from the provider is normalized to an empty
// list.  Call sites that hold either a *Dependencies or a plain slice can
// treat them alike via Concat.
//
// There is no concurrency guard: a resolution attempt is single-threaded by
// design.
type Dependencies struct {
	pkg      interface{}
	provider Provider

	computed bool
	deps     []interface{}
}

func NewDependencies(pkg interface{}, provider Provider) *Dependencies {
	return &Dependencies{
		pkg:      pkg,
		provider: provider,
	}
}

// Dependencies returns the package's dependency list, fetching it from the
// provider on first access.  A fetch error is not cached; a later call will
// retry.
func (d *Dependencies) Dependencies(ctx context.Context) ([]interface{}, error) {
	if d.computed {
		return d.deps, nil
	}
	d.provider.Debug(ctx, fmt.Sprintf("Fetching dependencies for %v", d.pkg), 0)
	deps, err := d.provider.DependenciesFor(ctx, d.pkg)
	if err != nil {
		return nil, err
	}
	if deps == nil {
		deps = []interface{}{}
	}
	d.deps = deps
	d.computed = true
	return d.deps, nil
}

// Len returns the number of dependencies.
func (d *Dependencies) Len(ctx context.Context) (int, error) {
	deps, err := d.Dependencies(ctx)
	if err != nil {
		return 0, err
	}
	return len(deps), nil
}

// Concat returns the dependency list followed by the given extra
// requirements, as a fresh slice.
func (d *Dependencies) Concat(ctx context.Context, extra []interface{}) ([]interface{}, error) {
	deps, err := d.Dependencies(ctx)
	if err != nil {
		return nil, err
	}
	ret := make([]interface{}, 0, len(deps)+len(extra))
	ret = append(ret, deps...)
	ret = append(ret, extra...)
	return ret, nil
}
