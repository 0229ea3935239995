// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/datawire/pysolve/pkg/resolver"
)

var spewConfig = spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisableCapacities:       true,
	DisablePointerAddresses: true,
	SortKeys:                true,
}

// DumpGraph renders a graph to a deterministic textual form: vertices in
// name order, edges in adjacency-list order.  Two graphs with the same dump
// are observably identical, which is what the apply/revert round-trip
// properties assert.
func DumpGraph(g *resolver.Graph) string {
	names := make([]string, 0, len(g.Vertices))
	for name := range g.Vertices {
		names = append(names, name)
	}
	sort.Strings(names)

	ret := new(strings.Builder)
	for _, name := range names {
		vertex := g.Vertices[name]
		fmt.Fprintf(ret, "vertex %q root=%v\n", vertex.Name, vertex.Root)
		fmt.Fprintf(ret, "  payload = %s", spewConfig.Sdump(vertex.Payload))
		for _, req := range vertex.ExplicitRequirements {
			fmt.Fprintf(ret, "  explicit requirement = %v\n", req)
		}
		for _, edge := range vertex.OutgoingEdges {
			fmt.Fprintf(ret, "  edge -> %q requirement=%v\n", edge.Destination.Name, edge.Requirement)
		}
		for _, edge := range vertex.IncomingEdges {
			fmt.Fprintf(ret, "  edge <- %q requirement=%v\n", edge.Origin.Name, edge.Requirement)
		}
	}
	return ret.String()
}

// AssertEqualGraphs compares two graphs by their dumps, reporting a unified
// diff on mismatch.
func AssertEqualGraphs(t *testing.T, exp, act *resolver.Graph) bool {
	t.Helper()
	expStr := DumpGraph(exp)
	actStr := DumpGraph(act)
	if expStr == actStr {
		return true
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expStr),
		B:        difflib.SplitLines(actStr),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  2,
	})
	t.Errorf("Graph diff:\n%s", diff)
	return false
}

// SnapshotGraph is DumpGraph for taking a before-image that a later
// AssertGraphUnchanged compares against.
func SnapshotGraph(g *resolver.Graph) string {
	return DumpGraph(g)
}

// AssertGraphUnchanged compares a graph against a previously-taken snapshot.
func AssertGraphUnchanged(t *testing.T, snapshot string, g *resolver.Graph) bool {
	t.Helper()
	actStr := DumpGraph(g)
	if snapshot == actStr {
		return true
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(snapshot),
		B:        difflib.SplitLines(actStr),
		FromFile: "Before",
		ToFile:   "After",
		Context:  2,
	})
	t.Errorf("Graph diff:\n%s", diff)
	return false
}
