// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"

	"github.com/datawire/pysolve/pkg/cliutil"
	"github.com/datawire/pysolve/pkg/provider"
	"github.com/datawire/pysolve/pkg/pypi"
	"github.com/datawire/pysolve/pkg/python/pep508"
	"github.com/datawire/pysolve/pkg/resolver"
)

type lockedPackage struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}

type lockFile struct {
	Packages []lockedPackage `yaml:"packages"`
}

func lockFromGraph(graph *resolver.Graph) lockFile {
	names := make([]string, 0, len(graph.Vertices))
	for name := range graph.Vertices {
		names = append(names, name)
	}
	sort.Strings(names)

	var lock lockFile
	for _, name := range names {
		vertex := graph.Vertices[name]
		pkg, ok := vertex.Payload.(provider.Package)
		if !ok {
			continue
		}
		locked := lockedPackage{
			Name:    pkg.Name,
			Version: pkg.Version.String(),
		}
		for _, succ := range vertex.Successors() {
			locked.Dependencies = append(locked.Dependencies, succ.Name)
		}
		sort.Strings(locked.Dependencies)
		lock.Packages = append(lock.Packages, locked)
	}
	return lock
}

// resolutionFlags registers the flags shared by every command that runs a
// resolution.
func resolutionFlags(flags *pflag.FlagSet, indexServer *string, debug *bool) {
	flags.StringVar(indexServer, "index-server", pypi.PyPIBaseURL,
		"Package index to resolve against (JSON API root)")
	flags.BoolVar(debug, "debug", false,
		"Trace the resolution steps to stderr")
}

func parseRequirements(args []string) ([]interface{}, error) {
	requested := make([]interface{}, 0, len(args))
	for _, arg := range args {
		req, err := pep508.ParseRequirement(arg)
		if err != nil {
			return nil, err
		}
		requested = append(requested, *req)
	}
	return requested, nil
}

func init() {
	var indexServer string
	var debug bool
	cmd := &cobra.Command{
		Use:   "resolve [flags] REQUIREMENT...",
		Short: "Resolve requirements to a pinned package set",
		Args:  cliutil.WrapPositionalArgs(cobra.MinimumNArgs(1)),

		Long: "Given one or more PEP 508 requirement strings, pick a version for every " +
			"package in the transitive dependency closure such that every requirement is " +
			"satisfied, and write the pinned set to stdout as YAML.",

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
			out, err := yaml.Marshal(lockFromGraph(graph))
			if err != nil {
				return err
			}
			_, err = flags.OutOrStdout().Write(out)
			return err
		},
	}
	resolutionFlags(cmd.Flags(), &indexServer, &debug)

	argparser.AddCommand(cmd)
}
