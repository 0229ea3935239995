// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/datawire/pysolve/pkg/cliutil"
	"github.com/datawire/pysolve/pkg/provider"
	"github.com/datawire/pysolve/pkg/pypi"
	"github.com/datawire/pysolve/pkg/resolver"
)

func init() {
	var indexServer string
	var debug bool
	cmd := &cobra.Command{
		Use:   "graph [flags] REQUIREMENT...",
		Short: "Resolve requirements and print the dependency tree",
		Args:  cliutil.WrapPositionalArgs(cobra.MinimumNArgs(1)),

		RunE: func(flags *cobra.Command, args []string) error {
			ctx := flags.Context()
			requested, err := parseRequirements(args)
			if err != nil {
				return err
			}
			prov := provider.NewIndexProvider(&pypi.Client{BaseURL: indexServer})
			ui := &resolver.UI{
				Out:       flags.ErrOrStderr(),
				Debugging: debug,
			}
			graph, err := resolver.ResolveWithOverrides(ctx, prov, ui, requested)
			if err != nil {
				return err
			}
			printGraph(flags.OutOrStdout(), graph)
			return nil
		},
	}
	resolutionFlags(cmd.Flags(), &indexServer, &debug)

	argparser.AddCommand(cmd)
}

func printGraph(w io.Writer, graph *resolver.Graph) {
	roots := make([]string, 0, len(graph.Vertices))
	for name, vertex := range graph.Vertices {
		if vertex.Root {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)
	seen := sets.NewString()
	for _, name := range roots {
		printSubtree(w, graph.Vertices[name], "", seen)
	}
}

func printSubtree(w io.Writer, vertex *resolver.Vertex, indent string, seen sets.String) {
	label := vertex.Name
	if pkg, ok := vertex.Payload.(provider.Package); ok {
		label = pkg.String()
	}
	if seen.Has(vertex.Name) {
		fmt.Fprintf(w, "%s%s (^)\n", indent, label)
		return
	}
	seen.Insert(vertex.Name)
	fmt.Fprintf(w, "%s%s\n", indent, label)
	for _, succ := range vertex.Successors() {
		printSubtree(w, succ, indent+"  ", seen)
	}
}
