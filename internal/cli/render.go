// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/jeranaias/sidechat/internal/config"
)

// =============================================================================
// REPLY RENDERING
// =============================================================================

// Renderer writes streamed replies. On a terminal with markdown enabled the
// raw streamed text is replaced by its glamour rendering once the reply is
// complete; elsewhere the raw text is the final output.
type Renderer struct {
	w     io.Writer
	out   *termenv.Output
	md    *glamour.TermRenderer
	width int

	// streamed holds the raw text of the reply in progress
	streamed strings.Builder
}

// NewRenderer builds a renderer for w using the UI settings.
func NewRenderer(w io.Writer, ui config.UIConfig) *Renderer {
	r := &Renderer{
		w:     w,
		out:   termenv.NewOutput(w),
		width: terminalWidth(w),
	}
	if ui.RenderMarkdown && isTerminal(w) {
		r.md = newMarkdown(ui.Theme, r.width)
	}
	return r
}

func newMarkdown(theme string, width int) *glamour.TermRenderer {
	wrap := width - 4
	if wrap > 100 || wrap <= 0 {
		wrap = 100
	}

	style := glamour.WithAutoStyle()
	switch theme {
	case "dark", "light":
		style = glamour.WithStandardStyle(theme)
	}

	md, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(wrap))
	if err != nil {
		// Fall back to plain text
		return nil
	}
	return md
}

// Markdown reports whether final replies are rendered.
func (r *Renderer) Markdown() bool {
	return r.md != nil
}

// Delta writes one streamed delta.
func (r *Renderer) Delta(delta string) {
	r.streamed.WriteString(delta)
	fmt.Fprint(r.w, delta)
}

// Finish ends the reply in progress. final is the complete reply text.
func (r *Renderer) Finish(final string) {
	raw := r.streamed.String()
	r.streamed.Reset()

	if r.md == nil {
		if !strings.HasSuffix(raw, "\n") {
			fmt.Fprintln(r.w)
		}
		return
	}

	rendered, err := r.md.Render(final)
	if err != nil {
		fmt.Fprintln(r.w)
		return
	}
	if raw != "" {
		// Cursor sits at the end of the last streamed row.
		r.out.ClearLines(rows(raw, r.width) - 1)
		r.out.ClearLine()
		fmt.Fprint(r.w, "\r")
	}
	fmt.Fprint(r.w, rendered)
}

// Abort ends a reply that failed or was abandoned. The partial text stays
// on screen but is marked as discarded.
func (r *Renderer) Abort(reason string) {
	if r.streamed.Len() > 0 {
		fmt.Fprintln(r.w)
	}
	r.streamed.Reset()
	fmt.Fprintln(r.w, DimStyle.Render("["+reason+"]"))
}

// Static renders a complete markdown document, used for history replay.
func (r *Renderer) Static(text string) string {
	if r.md == nil {
		return text
	}
	rendered, err := r.md.Render(text)
	if err != nil {
		return text
	}
	return rendered
}
