// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/pysolve/pkg/resolver"
	"github.com/datawire/pysolve/pkg/testutil"
)

func TestAddVertex(t *testing.T) {
	t.Parallel()

	t.Run("fresh", func(t *testing.T) {
		t.Parallel()
		g := resolver.NewGraph()
		snapshot := testutil.SnapshotGraph(g)

		vertex := g.AddVertex("lib", "v1", true)
		assert.Equal(t, "v1", vertex.Payload)
		assert.True(t, vertex.Root)
		assert.Equal(t, 1, g.Log().Len())

		g.Pop()
		testutil.AssertGraphUnchanged(t, snapshot, g)
	})

	t.Run("payload-first-write-wins", func(t *testing.T) {
		t.Parallel()
		g := resolver.NewGraph()
		g.AddVertex("lib", "v1", false)
		snapshot := testutil.SnapshotGraph(g)

		vertex := g.AddVertex("lib", "v2", false)
		assert.Equal(t, "v1", vertex.Payload)

		g.Pop()
		testutil.AssertGraphUnchanged(t, snapshot, g)
	})

	t.Run("nil-payload-is-unset", func(t *testing.T) {
		t.Parallel()
		g := resolver.NewGraph()
		g.AddVertex("lib", nil, false)
		snapshot := testutil.SnapshotGraph(g)

		vertex := g.AddVertex("lib", "v2", false)
		assert.Equal(t, "v2", vertex.Payload)

		g.Pop()
		testutil.AssertGraphUnchanged(t, snapshot, g)
	})

	t.Run("root-is-monotonic", func(t *testing.T) {
		t.Parallel()
		g := resolver.NewGraph()
		g.AddVertex("lib", nil, true)
		snapshot := testutil.SnapshotGraph(g)

		vertex := g.AddVertex("lib", nil, false)
		assert.True(t, vertex.Root)

		g.Pop()
		testutil.AssertGraphUnchanged(t, snapshot, g)
	})
}

func TestAddEdgeNoCircular(t *testing.T) {
	t.Parallel()

	t.Run("links-both-lists", func(t *testing.T) {
		t.Parallel()
		g := resolver.NewGraph()
		g.AddVertex("app", nil, true)
		g.AddVertex("lib", nil, false)
		snapshot := testutil.SnapshotGraph(g)

		edge := mustAddEdge(t, g, "app", "lib", ">=1.0")
		assert.Equal(t, "app", edge.Origin.Name)
		assert.Equal(t, "lib", edge.Destination.Name)
		assert.Equal(t, ">=1.0", edge.Requirement)
		assert.Len(t, edge.Origin.OutgoingEdges, 1)
		assert.Len(t, edge.Destination.IncomingEdges, 1)

		g.Pop()
		testutil.AssertGraphUnchanged(t, snapshot, g)
	})

	t.Run("missing-endpoint", func(t *testing.T) {
		t.Parallel()
		g := resolver.NewGraph()
		g.AddVertex("app", nil, true)
		snapshot := testutil.SnapshotGraph(g)

		_, err := g.AddEdgeNoCircular("app", "lib", nil)
		assert.Error(t, err)
		// a failed apply is not recorded
		assert.Equal(t, 1, g.Log().Len())
		testutil.AssertGraphUnchanged(t, snapshot, g)
	})

	t.Run("revert-removes-own-edge", func(t *testing.T) {
		t.Parallel()
		g := resolver.NewGraph()
		g.AddVertex("app", nil, true)
		g.AddVertex("lib", nil, false)
		mustAddEdge(t, g, "app", "lib", ">=1.0")
		snapshot := testutil.SnapshotGraph(g)

		// a parallel edge: same endpoints, different requirement
		mustAddEdge(t, g, "app", "lib", ">=2.0")

		// reverting must take out the edge this action created, not the
		// pre-existing parallel one
		g.Pop()
		testutil.AssertGraphUnchanged(t, snapshot, g)
		app, err := g.VertexNamed("app")
		require.NoError(t, err)
		require.Len(t, app.OutgoingEdges, 1)
		assert.Equal(t, ">=1.0", app.OutgoingEdges[0].Requirement)
	})

	t.Run("no-cycle-check", func(t *testing.T) {
		t.Parallel()
		g := resolver.NewGraph()
		g.AddVertex("a", nil, true)
		g.AddVertex("b", nil, false)
		mustAddEdge(t, g, "a", "b", nil)
		// the action itself does not reject a cycle; that is the driving
		// solver's job
		mustAddEdge(t, g, "b", "a", nil)
	})
}

func TestDeleteEdge(t *testing.T) {
	t.Parallel()

	t.Run("round-trip", func(t *testing.T) {
		t.Parallel()
		g := resolver.NewGraph()
		g.AddVertex("app", nil, true)
		g.AddVertex("lib", nil, false)
		mustAddEdge(t, g, "app", "lib", ">=1.0")
		snapshot := testutil.SnapshotGraph(g)

		edge, err := g.DeleteEdge("app", "lib", ">=1.0")
		require.NoError(t, err)
		assert.Empty(t, edge.Origin.OutgoingEdges)
		assert.Empty(t, edge.Destination.IncomingEdges)

		// revert restores the edge into both endpoints' lists
		g.Pop()
		testutil.AssertGraphUnchanged(t, snapshot, g)
	})

	t.Run("round-trip-preserves-order", func(t *testing.T) {
		t.Parallel()
		g := resolver.NewGraph()
		g.AddVertex("app", nil, true)
		g.AddVertex("other", nil, true)
		g.AddVertex("libA", nil, false)
		g.AddVertex("libB", nil, false)
		// libA's incoming order is [other, app]; app's outgoing order is
		// [libA, libB]
		mustAddEdge(t, g, "other", "libA", ">=0.5")
		mustAddEdge(t, g, "app", "libA", ">=1.0")
		mustAddEdge(t, g, "app", "libB", ">=1.0")
		snapshot := testutil.SnapshotGraph(g)

		_, err := g.DeleteEdge("app", "libA", ">=1.0")
		require.NoError(t, err)

		// the edge goes back in at list position 0 of app's outgoing
		// list and position 1 of libA's incoming list, not at the tail
		g.Pop()
		testutil.AssertGraphUnchanged(t, snapshot, g)
		app, err := g.VertexNamed("app")
		require.NoError(t, err)
		assert.Equal(t, []string{"libA", "libB"}, vertexNames(app.Successors()))
		libA, err := g.VertexNamed("libA")
		require.NoError(t, err)
		assert.Equal(t, []string{"other", "app"}, vertexNames(libA.Predecessors()))
	})

	t.Run("missing-edge", func(t *testing.T) {
		t.Parallel()
		g := resolver.NewGraph()
		g.AddVertex("app", nil, true)
		g.AddVertex("lib", nil, false)

		_, err := g.DeleteEdge("app", "lib", nil)
		assert.Error(t, err)
	})

	t.Run("endpoint-identity", func(t *testing.T) {
		t.Parallel()
		g := resolver.NewGraph()
		g.AddVertex("app", nil, true)
		g.AddVertex("lib", nil, false)
		mustAddEdge(t, g, "app", "lib", ">=1.0")
		mustAddEdge(t, g, "app", "lib", ">=2.0")

		// the requirement is not part of edge identity; the first edge
		// with matching endpoints goes
		edge, err := g.DeleteEdge("app", "lib", "whatever")
		require.NoError(t, err)
		assert.Equal(t, ">=1.0", edge.Requirement)

		app, err := g.VertexNamed("app")
		require.NoError(t, err)
		require.Len(t, app.OutgoingEdges, 1)
		assert.Equal(t, ">=2.0", app.OutgoingEdges[0].Requirement)
	})
}

func TestDetachVertexNamedRevert(t *testing.T) {
	t.Parallel()

	t.Run("cascade-round-trip", func(t *testing.T) {
		t.Parallel()
		g := resolver.NewGraph()
		g.AddVertex("root", "r", true)
		g.AddVertex("a", "va", false)
		g.AddVertex("b", "vb", false)
		g.AddVertex("shared", "vs", false)
		mustAddEdge(t, g, "root", "a", ">=1.0")
		mustAddEdge(t, g, "root", "b", ">=1.0")
		mustAddEdge(t, g, "a", "shared", ">=1.0")
		mustAddEdge(t, g, "b", "shared", ">=2.0")
		snapshot := testutil.SnapshotGraph(g)

		removed := g.Log().DetachVertexNamed(g, "root")
		assert.Equal(t, []string{"root", "a", "b", "shared"}, vertexNames(removed))
		assert.Empty(t, g.Vertices)

		// the entire cascade was one action; one pop restores the lot,
		// adjacency-list order included
		g.Pop()
		testutil.AssertGraphUnchanged(t, snapshot, g)
	})

	t.Run("absent-is-noop", func(t *testing.T) {
		t.Parallel()
		g := resolver.NewGraph()
		g.AddVertex("lib", nil, false)
		snapshot := testutil.SnapshotGraph(g)

		assert.Nil(t, g.Log().DetachVertexNamed(g, "nope"))
		g.Pop()
		testutil.AssertGraphUnchanged(t, snapshot, g)
	})
}

func TestSetPayload(t *testing.T) {
	t.Parallel()

	g := resolver.NewGraph()
	g.AddVertex("lib", "v1", false)
	snapshot := testutil.SnapshotGraph(g)

	require.NoError(t, g.SetPayload("lib", "v2"))
	vertex, err := g.VertexNamed("lib")
	require.NoError(t, err)
	assert.Equal(t, "v2", vertex.Payload)

	g.Pop()
	testutil.AssertGraphUnchanged(t, snapshot, g)

	assert.Error(t, g.SetPayload("nope", "v2"))
}
