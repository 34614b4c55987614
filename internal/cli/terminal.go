// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// DefaultTerminalWidth is used when the width cannot be determined.
const DefaultTerminalWidth = 80

// =============================================================================
// TTY DETECTION
// =============================================================================

// IsTTY returns true if stdin is a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// isTerminal reports whether w is a terminal file.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of w, or DefaultTerminalWidth.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return DefaultTerminalWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	return width
}

// colorProfile returns the termenv profile for w. NO_COLOR disables color
// and FORCE_COLOR enables it on non-terminals.
func colorProfile(w io.Writer) termenv.Profile {
	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	if os.Getenv("FORCE_COLOR") == "" && !isTerminal(w) {
		return termenv.Ascii
	}
	return termenv.NewOutput(w).EnvColorProfile()
}

// =============================================================================
// WIDTH HELPERS
// =============================================================================

// fitColumn truncates or pads s to exactly width display cells.
func fitColumn(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "...")
	}
	return runewidth.FillRight(s, width)
}

// rows returns how many terminal rows text occupies at the given width.
func rows(text string, width int) int {
	if width <= 0 {
		width = DefaultTerminalWidth
	}
	n := 0
	for _, line := range strings.Split(text, "\n") {
		w := runewidth.StringWidth(line)
		if w == 0 {
			n++
			continue
		}
		n += (w + width - 1) / width
	}
	return n
}
