// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package resolver_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/pysolve/pkg/resolver"
)

// depProvider is a Provider stub that only implements DependenciesFor, with a
// call counter and an optional number of initial failures.
type depProvider struct {
	deps  []interface{}
	fail  int
	calls int
}

func (p *depProvider) NameFor(item interface{}) string { return item.(string) }

func (p *depProvider) SearchFor(_ context.Context, _ interface{}) ([]interface{}, error) {
	return nil, nil
}

func (p *depProvider) DependenciesFor(_ context.Context, _ interface{}) ([]interface{}, error) {
	p.calls++
	if p.calls <= p.fail {
		return nil, errors.New("index unavailable")
	}
	return p.deps, nil
}

func (p *depProvider) IsRequirementSatisfiedBy(_, _ interface{}) bool { return true }

func (p *depProvider) Debug(_ context.Context, _ string, _ int) {}

func TestDependenciesFetchOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	provider := &depProvider{deps: []interface{}{"libA", "libB"}}
	d := resolver.NewDependencies("app", provider)

	for i := 0; i < 3; i++ {
		deps, err := d.Dependencies(ctx)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"libA", "libB"}, deps)
	}
	n, err := d.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, 1, provider.calls)
}

func TestDependenciesNilIsEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	d := resolver.NewDependencies("app", &depProvider{deps: nil})
	deps, err := d.Dependencies(ctx)
	require.NoError(t, err)
	assert.NotNil(t, deps)
	assert.Empty(t, deps)
}

func TestDependenciesErrorNotCached(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	provider := &depProvider{deps: []interface{}{"libA"}, fail: 1}
	d := resolver.NewDependencies("app", provider)

	_, err := d.Dependencies(ctx)
	require.Error(t, err)

	// the failed fetch was not cached; the retry hits the provider again
	deps, err := d.Dependencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"libA"}, deps)
	assert.Equal(t, 2, provider.calls)

	// and the success is cached as usual
	_, err = d.Dependencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
}

func TestDependenciesConcat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	d := resolver.NewDependencies("app", &depProvider{deps: []interface{}{"libA"}})
	all, err := d.Concat(ctx, []interface{}{"libB", "libC"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"libA", "libB", "libC"}, all)

	// Concat does not mutate the cached list
	deps, err := d.Dependencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"libA"}, deps)
}
