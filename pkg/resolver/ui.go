// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// UI is the progress and trace sink for a resolution attempt.  It holds no
// resolution state besides the debug flag; every method is a side-effecting
// write.  A zero UI writes to stderr with debugging off.
type UI struct {
	Out       io.Writer
	Debugging bool
}

func (ui *UI) out() io.Writer {
	if ui.Out == nil {
		return os.Stderr
	}
	return ui.Out
}

func (ui *UI) IsDebugging() bool {
	return ui.Debugging
}

// IndicateProgress writes one progress unit.
func (ui *UI) IndicateProgress() {
	fmt.Fprint(ui.out(), ".")
}

// BeforeResolution opens the banner that brackets a solve attempt.
func (ui *UI) BeforeResolution() {
	fmt.Fprint(ui.out(), "Resolving dependencies...")
}

// AfterResolution closes the banner.
func (ui *UI) AfterResolution() {
	fmt.Fprintln(ui.out())
}

// Debug writes a depth-indented trace message (multi-line messages keep the
// indent on every line).  It is gated on IsDebugging.
func (ui *UI) Debug(message string, depth int) {
	if !ui.IsDebugging() {
		return
	}
	indent := strings.Repeat("  ", depth)
	for _, line := range strings.Split(message, "\n") {
		fmt.Fprintf(ui.out(), "%s%s\n", indent, line)
	}
}
