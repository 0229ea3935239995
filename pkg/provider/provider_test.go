// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package provider_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/pysolve/pkg/provider"
	"github.com/datawire/pysolve/pkg/pypi"
	"github.com/datawire/pysolve/pkg/python/pep440"
	"github.com/datawire/pysolve/pkg/python/pep508"
	"github.com/datawire/pysolve/pkg/resolver"
)

// newIndexProvider serves a small fake package index over the JSON API.
func newIndexProvider(t *testing.T) *provider.IndexProvider {
	pages := map[string]string{
		"/pypi/app/json":     `{"info": {"name": "app", "version": "1.0"}, "releases": {"1.0": []}}`,
		"/pypi/app/1.0/json": `{"info": {"name": "app", "version": "1.0", "requires_dist": ["libA (>=1.0)", "socks-stuff ; extra == \"socks\""]}}`,

		"/pypi/liba/json":     `{"info": {"name": "libA", "version": "2.0"}, "releases": {"1.0": [], "2.0": []}}`,
		"/pypi/liba/1.0/json": `{"info": {"name": "libA", "version": "1.0", "requires_dist": ["libB (>=1.0)"]}}`,
		"/pypi/liba/2.0/json": `{"info": {"name": "libA", "version": "2.0", "requires_dist": ["libB (>=2.0)"]}}`,

		"/pypi/libb/json":     `{"info": {"name": "libB", "version": "1.0"}, "releases": {"1.0": []}}`,
		"/pypi/libb/1.0/json": `{"info": {"name": "libB", "version": "1.0"}}`,

		"/pypi/conflicted/json":     `{"info": {"name": "conflicted", "version": "1.0"}, "releases": {"1.0": []}}`,
		"/pypi/conflicted/1.0/json": `{"info": {"name": "conflicted", "version": "1.0", "requires_dist": ["libC (>=2.0)", "libC (<2.0)"]}}`,

		"/pypi/libc/json":     `{"info": {"name": "libC", "version": "2.0"}, "releases": {"1.0": [], "2.0": []}}`,
		"/pypi/libc/1.0/json": `{"info": {"name": "libC", "version": "1.0"}}`,
		"/pypi/libc/2.0/json": `{"info": {"name": "libC", "version": "2.0"}}`,

		"/pypi/pretest/json": `{"info": {"name": "pretest", "version": "0.9"}, "releases": {"0.9": [], "1.0a1": []}}`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(server.Close)
	return provider.NewIndexProvider(&pypi.Client{BaseURL: server.URL + "/"})
}

func mustRequirement(t *testing.T, str string) pep508.Requirement {
	t.Helper()
	req, err := pep508.ParseRequirement(str)
	require.NoError(t, err)
	return *req
}

func TestRelation(t *testing.T) {
	t.Parallel()
	universe := []pep440.Version{
		pep440.MustParseVersion("1.0"),
		pep440.MustParseVersion("1.5"),
		pep440.MustParseVersion("2.0"),
		pep440.MustParseVersion("2.5"),
	}
	spec := func(str string) pep440.Specifier {
		s, err := pep440.ParseSpecifier(str)
		require.NoError(t, err)
		return s
	}
	testcases := []struct {
		a, b     string
		expected resolver.SetRelation
	}{
		{">=2.0", "<2.0", resolver.RelationDisjoint},
		{">=1.5", "<2.5", resolver.RelationOverlapping},
		{">=2.0", ">=1.0", resolver.RelationSubset},
		{">=1.0", ">=2.0", resolver.RelationSubset},
	}
	for _, tc := range testcases {
		assert.Equalf(t, tc.expected, provider.Relation(spec(tc.a), spec(tc.b), universe),
			"Relation(%q, %q)", tc.a, tc.b)
	}
}

func TestNameFor(t *testing.T) {
	t.Parallel()
	p := provider.NewIndexProvider(nil)
	req := mustRequirement(t, "Zope.Interface >=5.0")
	assert.Equal(t, "zope-interface", p.NameFor(req))
	assert.Equal(t, "zope-interface", p.NameFor(&req))
	assert.Equal(t, "liba", p.NameFor(provider.Package{
		Name:    "libA",
		Version: pep440.MustParseVersion("1.0"),
	}))
}

func TestSearchFor(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)
	p := newIndexProvider(t)

	t.Run("best-last", func(t *testing.T) {
		candidates, err := p.SearchFor(ctx, mustRequirement(t, "libA >=1.0"))
		require.NoError(t, err)
		require.Len(t, candidates, 2)
		assert.Equal(t, "liba (1.0)", candidates[0].(provider.Package).String())
		assert.Equal(t, "liba (2.0)", candidates[1].(provider.Package).String())
	})

	t.Run("prerelease-fallback", func(t *testing.T) {
		candidates, err := p.SearchFor(ctx, mustRequirement(t, "pretest"))
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "0.9", candidates[0].(provider.Package).Version.String())

		candidates, err = p.SearchFor(ctx, mustRequirement(t, "pretest >=1.0a0"))
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "1.0a1", candidates[0].(provider.Package).Version.String())
	})
}

func TestDependenciesFor(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)
	p := newIndexProvider(t)

	t.Run("extras-dropped", func(t *testing.T) {
		deps, err := p.DependenciesFor(ctx, provider.Package{
			Name:    "app",
			Version: pep440.MustParseVersion("1.0"),
		})
		require.NoError(t, err)
		require.Len(t, deps, 1)
		assert.Equal(t, "liba", p.NameFor(deps[0]))
	})

	t.Run("disjoint-escalates", func(t *testing.T) {
		_, err := p.DependenciesFor(ctx, provider.Package{
			Name:    "conflicted",
			Version: pep440.MustParseVersion("1.0"),
		})
		var needed *resolver.OverrideNeeded
		require.True(t, errors.As(err, &needed))
		overrides := needed.Overrides()
		require.Len(t, overrides, 2)
		// proposals come back in metadata order
		assert.Equal(t, ">=2.0", overrides[0]["libc"].(pep508.Requirement).Specifier.String())
		assert.Equal(t, "<2.0", overrides[1]["libc"].(pep508.Requirement).Specifier.String())
	})

	t.Run("override-substitutes", func(t *testing.T) {
		forced := p.WithOverrides(map[string]interface{}{
			"libC": mustRequirement(t, "libC ==2.0"),
		})
		deps, err := forced.DependenciesFor(ctx, provider.Package{
			Name:    "conflicted",
			Version: pep440.MustParseVersion("1.0"),
		})
		require.NoError(t, err)
		require.Len(t, deps, 1)
		assert.Equal(t, "==2.0", deps[0].(pep508.Requirement).Specifier.String())
	})
}

func TestIsRequirementSatisfiedBy(t *testing.T) {
	t.Parallel()
	p := provider.NewIndexProvider(nil)
	pkg := provider.Package{Name: "libA", Version: pep440.MustParseVersion("1.4")}

	assert.True(t, p.IsRequirementSatisfiedBy(mustRequirement(t, "libA >=1.0,<2.0"), pkg))
	assert.True(t, p.IsRequirementSatisfiedBy(mustRequirement(t, "LibA"), pkg))
	assert.False(t, p.IsRequirementSatisfiedBy(mustRequirement(t, "libA >=2.0"), pkg))
	assert.False(t, p.IsRequirementSatisfiedBy(mustRequirement(t, "libB"), pkg))
}

// TestResolveAgainstIndex drives a whole resolution against the fake index,
// backtracking from libA 2.0 (whose libB requirement is unsatisfiable) to
// libA 1.0.
func TestResolveAgainstIndex(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)
	p := newIndexProvider(t)

	graph, err := resolver.ResolveWithOverrides(ctx, p, &resolver.UI{Out: dlog.StdLogger(ctx, dlog.LogLevelDebug).Writer()},
		[]interface{}{mustRequirement(t, "app >=1.0")})
	require.NoError(t, err)

	version := func(name string) string {
		vertex, err := graph.VertexNamed(name)
		require.NoError(t, err)
		return vertex.Payload.(provider.Package).Version.String()
	}
	assert.Equal(t, "1.0", version("app"))
	assert.Equal(t, "1.0", version("liba"))
	assert.Equal(t, "1.0", version("libb"))
}

// TestResolveConflictedAgainstIndex exercises the OverrideNeeded round trip:
// the provider escalates, the orchestrator retries per override, and the
// first proposal (libC >=2.0) succeeds.
func TestResolveConflictedAgainstIndex(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)
	p := newIndexProvider(t)

	graph, err := resolver.ResolveWithOverrides(ctx, p, nil,
		[]interface{}{mustRequirement(t, "conflicted")})
	require.NoError(t, err)

	vertex, err := graph.VertexNamed("libc")
	require.NoError(t, err)
	assert.Equal(t, "2.0", vertex.Payload.(provider.Package).Version.String())
}
