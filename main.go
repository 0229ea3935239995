// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Command pysolve resolves Python package requirements against a package
// index, using a backtracking dependency solver.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datawire/pysolve/pkg/cliutil"
)

var argparser = &cobra.Command{
	Use:   "pysolve {[flags]|SUBCOMMAND...}",
	Short: "Resolve Python package requirements",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,

	SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
	SilenceUsage:  true, // our FlagErrorFunc will handle it
}

func init() {
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
}

func main() {
	ctx := context.Background()

	if err := argparser.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(argparser.ErrOrStderr(), "%s: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}
