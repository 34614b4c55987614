// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/sidechat/internal/chat"
	"github.com/jeranaias/sidechat/internal/config"
	"github.com/jeranaias/sidechat/internal/export"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// LineReader reads one line of input per call. io.EOF ends the session and
// liner.ErrPromptAborted discards the current line.
type LineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// History provides line editing and persistent input history.
type History struct {
	line *liner.State
	path string
}

// NewHistory opens a line editor whose history lives at path.
func NewHistory(path string) *History {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	h := &History{line: line, path: path}
	if f, err := os.Open(path); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return h
}

// historyPath returns ~/.sidechat/chat_history, or a temp-dir fallback.
func historyPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chat_history")
}

// Prompt reads a line and records non-blank input in the history.
func (h *History) Prompt(prompt string) (string, error) {
	input, err := h.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		h.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history (0600) and restores the terminal.
func (h *History) Close() error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0700); err == nil {
		if f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = h.line.WriteHistory(f)
			f.Close()
		}
	}
	return h.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// REPL is the interactive chat loop.
type REPL struct {
	app    *App
	svc    *chat.Service
	in     LineReader
	out    io.Writer
	render *Renderer
	quiet  bool

	// markdown is the rendering preference; it only takes effect on a terminal
	markdown bool

	// listed maps the numbers of the last listing to conversation ids
	listed []string

	// turnContext scopes one prompt; Ctrl+C cancels it
	turnContext func(context.Context) (context.Context, context.CancelFunc)
}

// NewREPL creates a REPL reading from in.
func NewREPL(app *App, in LineReader, quiet bool) *REPL {
	return &REPL{
		app:      app,
		svc:      app.Service,
		in:       in,
		out:      app.Out,
		render:   NewRenderer(app.Out, app.Config.UI),
		quiet:    quiet,
		markdown: app.Config.UI.RenderMarkdown,
		turnContext: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
}

// uiPrefs are the REPL choices kept between runs.
type uiPrefs struct {
	Markdown *bool `json:"markdown,omitempty"`
}

// Run reads and executes lines until /quit, EOF or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	r.loadPrefs(ctx)
	r.banner()

	for ctx.Err() == nil {
		line, err := r.in.Prompt("you> ")
		switch {
		case errors.Is(err, liner.ErrPromptAborted):
			continue
		case errors.Is(err, io.EOF):
			fmt.Fprintln(r.out)
			return nil
		case err != nil:
			return err
		}

		quit, err := r.Execute(ctx, line)
		if err != nil {
			fmt.Fprintln(r.out, ErrorStyle.Render(err.Error()))
		}
		if quit {
			return nil
		}
	}
	return nil
}

func (r *REPL) banner() {
	if r.quiet {
		return
	}
	fmt.Fprintln(r.out, TitleStyle.Render("sidechat "+Version))
	fmt.Fprintln(r.out, DimStyle.Render("model "+r.app.Config.Model.Model+" · /help for commands · Ctrl+D to exit"))
	if !r.svc.Available() {
		fmt.Fprintln(r.out, WarningStyle.Render("Model unavailable: browsing and export only"))
	}
	if conv, ok := r.svc.Conversations().Active(); ok {
		fmt.Fprintln(r.out, DimStyle.Render("Continuing: "+conv.Title))
		if last, ok := conv.LastMessage(); ok {
			preview := strings.Join(strings.Fields(last.Preview(60)), " ")
			fmt.Fprintln(r.out, DimStyle.Render("  "+last.Role.DisplayName()+": "+preview))
		}
	}
	fmt.Fprintln(r.out)
}

// Execute runs one input line. It reports whether the REPL should exit.
func (r *REPL) Execute(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if strings.HasPrefix(line, "/") {
		return r.command(ctx, line)
	}
	return false, r.submit(ctx, line)
}

func (r *REPL) submit(ctx context.Context, text string) error {
	turn, cancel := r.turnContext(ctx)
	defer cancel()

	msg, err := r.svc.Submit(turn, text, r.render.Delta)
	switch {
	case err == nil:
		r.render.Finish(msg.Content)
		r.showUsage()
		return nil
	case turn.Err() != nil:
		r.render.Abort("cancelled")
		return nil
	case errors.Is(err, chat.ErrAbandoned):
		r.render.Abort("abandoned")
		return nil
	case errors.Is(err, chat.ErrBusy):
		return errors.New("still answering the previous prompt")
	case errors.Is(err, chat.ErrCapabilityUnavailable):
		return err
	default:
		// Failures were already reported by the notifier.
		r.render.Abort("reply discarded")
		return nil
	}
}

func (r *REPL) showUsage() {
	if !r.app.Config.UI.ShowUsage {
		return
	}
	if u, ok := r.svc.Usage(); ok {
		fmt.Fprintln(r.out, DimStyle.Render(fmt.Sprintf("context %d/%d tokens (%.0f%%)", u.Used, u.Quota, u.Percent())))
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (r *REPL) command(ctx context.Context, line string) (bool, error) {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "/quit", "/q", "/exit":
		return true, nil

	case "/help", "/h", "/?":
		r.help()

	case "/new", "/n":
		r.svc.NewConversation(ctx)
		fmt.Fprintln(r.out, SuccessStyle.Render("Started a new conversation"))

	case "/list", "/ls":
		r.listed = printGroups(r.out, r.svc.Conversations(), r.svc.Conversations().ActiveID())

	case "/switch", "/s":
		id, err := r.resolve(rest)
		if err != nil {
			return false, err
		}
		if err := r.svc.Switch(ctx, id); err != nil {
			return false, err
		}
		r.replay(id)

	case "/delete", "/rm":
		id := r.svc.Conversations().ActiveID()
		if rest != "" {
			var err error
			if id, err = r.resolve(rest); err != nil {
				return false, err
			}
		}
		if id == "" {
			return false, errors.New("no active conversation")
		}
		if err := r.svc.Delete(ctx, id); err != nil {
			return false, err
		}
		r.listed = nil
		fmt.Fprintln(r.out, SuccessStyle.Render("Deleted"))

	case "/rename":
		if rest == "" {
			return false, errors.New("usage: /rename TITLE")
		}
		id, err := r.activeID()
		if err != nil {
			return false, err
		}
		return false, r.svc.Rename(ctx, id, rest)

	case "/search", "/find":
		if rest == "" {
			return false, errors.New("usage: /search QUERY")
		}
		r.listed = printResults(r.out, r.svc.Conversations().Search(rest))

	case "/temp", "/temperature":
		return false, r.setSetting(ctx, "temperature", rest)

	case "/topk", "/top_k":
		return false, r.setSetting(ctx, "topk", rest)

	case "/export":
		id, err := r.activeID()
		if err != nil {
			return false, err
		}
		path := rest
		if path == "" {
			conv, _ := r.svc.Conversations().Get(id)
			path = export.DefaultFilename(conv, ".md")
		}
		if err := r.svc.ExportFile(id, path); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, SuccessStyle.Render("Exported to "+path))

	case "/copy":
		if err := r.svc.CopyToClipboard(""); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, SuccessStyle.Render("Copied to clipboard"))

	case "/reset":
		r.svc.Reset()
		fmt.Fprintln(r.out, DimStyle.Render("Session reset; history kept"))

	case "/markdown", "/md":
		return false, r.setMarkdown(ctx, rest)

	case "/usage":
		u, ok := r.svc.Usage()
		if !ok {
			msg := "No live session"
			if conv, found := r.svc.Conversations().Active(); found {
				msg += fmt.Sprintf("; history is about %d tokens", conv.EstimateTokens())
			}
			fmt.Fprintln(r.out, DimStyle.Render(msg))
			break
		}
		fmt.Fprintf(r.out, "%s %d/%d tokens (%.1f%%)\n", LabelStyle.Render("Context"), u.Used, u.Quota, u.Percent())

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

func (r *REPL) help() {
	_, chatHelp, _ := strings.Cut(usageText, "Chat commands:\n")
	fmt.Fprint(r.out, chatHelp)
}

func (r *REPL) activeID() (string, error) {
	id := r.svc.Conversations().ActiveID()
	if id == "" {
		return "", errors.New("no active conversation")
	}
	return id, nil
}

// resolve maps a number from the last listing, or an id prefix, to an id.
func (r *REPL) resolve(ref string) (string, error) {
	if ref == "" {
		return "", errors.New("which conversation? give a number from /list")
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if len(r.listed) == 0 {
			r.listed = listingOrder(r.svc.Conversations())
		}
		if n < 1 || n > len(r.listed) {
			return "", fmt.Errorf("no conversation %d", n)
		}
		return r.listed[n-1], nil
	}
	return resolveID(r.svc.Conversations(), ref)
}

func (r *REPL) setSetting(ctx context.Context, which, value string) error {
	id, err := r.activeID()
	if err != nil {
		return err
	}
	conv, _ := r.svc.Conversations().Get(id)
	settings := conv.Settings

	switch which {
	case "temperature":
		t, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("usage: /temp X (now %.2f)", settings.Temperature)
		}
		settings.Temperature = t
	case "topk":
		k, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("usage: /topk N (now %d)", settings.TopK)
		}
		settings.TopK = k
	}

	if err := r.svc.UpdateSettings(ctx, id, settings); err != nil {
		return err
	}
	fmt.Fprintln(r.out, DimStyle.Render(fmt.Sprintf("temperature %.2f, top-k %d", settings.Temperature, settings.TopK)))
	return nil
}

// loadPrefs applies stored preferences over the configured UI settings.
func (r *REPL) loadPrefs(ctx context.Context) {
	var p uiPrefs
	if !r.svc.Prefs(ctx, &p) || p.Markdown == nil {
		return
	}
	r.markdown = *p.Markdown
	ui := r.app.Config.UI
	ui.RenderMarkdown = r.markdown
	r.render = NewRenderer(r.out, ui)
}

func (r *REPL) setMarkdown(ctx context.Context, value string) error {
	on := !r.markdown
	switch strings.ToLower(value) {
	case "":
	case "on":
		on = true
	case "off":
		on = false
	default:
		return errors.New("usage: /markdown [on|off]")
	}

	r.markdown = on
	ui := r.app.Config.UI
	ui.RenderMarkdown = on
	r.render = NewRenderer(r.out, ui)
	if err := r.svc.SavePrefs(ctx, uiPrefs{Markdown: &on}); err != nil {
		return err
	}
	state := "off"
	if on {
		state = "on"
	}
	fmt.Fprintln(r.out, DimStyle.Render("markdown rendering "+state))
	return nil
}

// replay prints the history of id after a switch.
func (r *REPL) replay(id string) {
	conv, ok := r.svc.Conversations().Get(id)
	if !ok {
		return
	}
	fmt.Fprintln(r.out, TitleStyle.Render(conv.Title))
	if conv.IsEmpty() {
		fmt.Fprintln(r.out, DimStyle.Render("No messages yet"))
		return
	}
	if r.quiet {
		return
	}
	for _, msg := range conv.Messages {
		fmt.Fprintln(r.out, GroupStyle.Render(msg.Role.DisplayName()+":"))
		fmt.Fprintln(r.out, strings.TrimRight(r.render.Static(msg.Content), "\n"))
	}
}
