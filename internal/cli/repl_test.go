// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/peterh/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sidechat/internal/chat"
	"github.com/jeranaias/sidechat/internal/config"
	"github.com/jeranaias/sidechat/internal/host"
	"github.com/jeranaias/sidechat/internal/host/hosttest"
	"github.com/jeranaias/sidechat/internal/logging"
)

// script is a LineReader that replays lines and errors in order, then EOF.
type script struct {
	items []any
	pos   int
}

func newScript(items ...any) *script {
	return &script{items: items}
}

func (s *script) Prompt(string) (string, error) {
	if s.pos >= len(s.items) {
		return "", io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	if err, ok := item.(error); ok {
		return "", err
	}
	return item.(string), nil
}

func (s *script) Close() error { return nil }

type replFixture struct {
	app        *App
	repl       *REPL
	capability *hosttest.Capability
	out        *bytes.Buffer
	errOut     *bytes.Buffer
}

func newReplFixture(t *testing.T) *replFixture {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Backend = "memory"

	f := &replFixture{
		capability: hosttest.New(),
		out:        &bytes.Buffer{},
		errOut:     &bytes.Buffer{},
	}
	app, err := Build(context.Background(), cfg, "", Deps{
		Capability: f.capability,
		Logger:     logging.Nop(),
		Out:        f.out,
		Err:        f.errOut,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	f.app = app
	f.repl = NewREPL(app, newScript(), true)
	return f
}

func (f *replFixture) exec(t *testing.T, line string) {
	t.Helper()
	require.NoError(t, f.app.Service.Start(context.Background()))
	_, err := f.repl.Execute(context.Background(), line)
	require.NoError(t, err, "executing %q", line)
}

// =============================================================================
// PROMPTS
// =============================================================================

func TestREPL_SubmitStreamsReply(t *testing.T) {
	f := newReplFixture(t)
	f.exec(t, "Hello there. Tell me a joke")

	assert.Contains(t, f.out.String(), "echo: Hello there. Tell me a joke\n")

	conv, ok := f.app.Service.Conversations().Active()
	require.True(t, ok)
	assert.Equal(t, "Hello there.", conv.Title)
	assert.Len(t, conv.Messages, 2)
}

func TestREPL_BlankLineIsIgnored(t *testing.T) {
	f := newReplFixture(t)
	f.exec(t, "   ")

	assert.Empty(t, f.out.String())
	assert.Equal(t, 0, f.app.Service.Conversations().Len())
}

func TestREPL_UnavailableModel(t *testing.T) {
	f := newReplFixture(t)
	f.capability.ProbeErr = assert.AnError
	_ = f.app.Service.Start(context.Background())

	_, err := f.repl.Execute(context.Background(), "hi")
	assert.ErrorIs(t, err, chat.ErrCapabilityUnavailable)
}

func TestREPL_CancelledTurn(t *testing.T) {
	f := newReplFixture(t)
	require.NoError(t, f.app.Service.Start(context.Background()))
	f.repl.turnContext = func(ctx context.Context) (context.Context, context.CancelFunc) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		return ctx, cancel
	}

	_, err := f.repl.Execute(context.Background(), "hi")
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "[cancelled]")
	assert.Empty(t, f.errOut.String(), "cancellation is not reported as a failure")
}

func TestREPL_StreamFailureIsDiscarded(t *testing.T) {
	f := newReplFixture(t)
	f.capability.SetResponder(func(host.Config, string) hosttest.Reply {
		return hosttest.Reply{Snapshots: []string{"par"}, Err: assert.AnError}
	})
	f.exec(t, "hi")

	assert.Contains(t, f.out.String(), "[reply discarded]")
	assert.Contains(t, f.errOut.String(), "Reply failed")
}

// =============================================================================
// NAVIGATION
// =============================================================================

func TestREPL_NewListSwitch(t *testing.T) {
	f := newReplFixture(t)
	f.exec(t, "First topic.")
	f.exec(t, "/new")
	f.exec(t, "Second topic.")

	f.out.Reset()
	f.exec(t, "/list")
	out := f.out.String()
	assert.Contains(t, out, "Today")
	assert.Contains(t, out, "First topic.")
	assert.Contains(t, out, "Second topic.")
	assert.Less(t, strings.Index(out, "Second topic."), strings.Index(out, "First topic."), "newest first")

	f.exec(t, "/switch 2")
	conv, ok := f.app.Service.Conversations().Active()
	require.True(t, ok)
	assert.Equal(t, "First topic.", conv.Title)

	_, err := f.repl.Execute(context.Background(), "/switch 9")
	assert.Error(t, err)
}

func TestREPL_SwitchToEmptyConversation(t *testing.T) {
	f := newReplFixture(t)
	f.exec(t, "Something.")
	f.exec(t, "/new")

	f.out.Reset()
	f.exec(t, "/switch 1")
	assert.Contains(t, f.out.String(), "No messages yet")
}

func TestREPL_BannerShowsLastMessage(t *testing.T) {
	f := newReplFixture(t)
	f.exec(t, "Plan a trip.\nTo the coast")

	f.out.Reset()
	next := NewREPL(f.app, newScript(), false)
	require.NoError(t, next.Run(context.Background()))
	out := f.out.String()
	assert.Contains(t, out, "Continuing: Plan a trip.")
	assert.Contains(t, out, "Assistant: echo: Plan a trip. To the coast")
}

func TestREPL_SwitchByIDPrefix(t *testing.T) {
	f := newReplFixture(t)
	f.exec(t, "One.")
	first := f.app.Service.Conversations().ActiveID()
	f.exec(t, "/new")

	f.exec(t, "/switch "+first[:8])
	assert.Equal(t, first, f.app.Service.Conversations().ActiveID())
}

func TestREPL_Delete(t *testing.T) {
	f := newReplFixture(t)
	f.exec(t, "Keep me.")
	f.exec(t, "/new")
	f.exec(t, "Drop me.")

	f.exec(t, "/delete")
	repo := f.app.Service.Conversations()
	assert.Equal(t, 1, repo.Len())
	conv, ok := repo.Active()
	require.True(t, ok)
	assert.Equal(t, "Keep me.", conv.Title)

	f.exec(t, "/delete 1")
	assert.Equal(t, 0, repo.Len())

	_, err := f.repl.Execute(context.Background(), "/delete")
	assert.Error(t, err, "nothing left to delete")
}

func TestREPL_RenameAndSettings(t *testing.T) {
	f := newReplFixture(t)
	f.exec(t, "Where should we go?")
	f.exec(t, "/rename Trip planning")
	f.exec(t, "/temp 0.2")
	f.exec(t, "/topk 7")

	conv, ok := f.app.Service.Conversations().Active()
	require.True(t, ok)
	assert.Equal(t, "Trip planning", conv.Title)
	assert.InDelta(t, 0.2, conv.Settings.Temperature, 1e-9)
	assert.Equal(t, 7, conv.Settings.TopK)

	for _, bad := range []string{"/temp warm", "/temp 9", "/topk 0", "/rename"} {
		_, err := f.repl.Execute(context.Background(), bad)
		assert.Error(t, err, bad)
	}
}

func TestREPL_SearchNumbersResults(t *testing.T) {
	f := newReplFixture(t)
	f.exec(t, "Tell me about goroutines.")
	f.exec(t, "/new")
	f.exec(t, "Bake bread.")

	f.out.Reset()
	f.exec(t, "/search GOROUTINES")
	assert.Contains(t, f.out.String(), "1. Tell me about goroutines.")
	assert.NotContains(t, f.out.String(), "Bake bread.")

	f.exec(t, "/switch 1")
	conv, _ := f.app.Service.Conversations().Active()
	assert.Equal(t, "Tell me about goroutines.", conv.Title)
}

func TestREPL_ExportAndUsage(t *testing.T) {
	f := newReplFixture(t)
	f.exec(t, "Export me.")

	path := filepath.Join(t.TempDir(), "out.md")
	f.exec(t, "/export "+path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Export me.\n"))

	f.out.Reset()
	f.exec(t, "/usage")
	assert.Contains(t, f.out.String(), "/4096 tokens")

	f.exec(t, "/reset")
	f.out.Reset()
	f.exec(t, "/usage")
	assert.Contains(t, f.out.String(), "No live session; history is about")
}

func TestREPL_MarkdownPreferencePersists(t *testing.T) {
	f := newReplFixture(t)
	require.True(t, f.repl.markdown)

	f.exec(t, "/markdown")
	assert.Contains(t, f.out.String(), "markdown rendering off")
	f.exec(t, "/markdown on")
	f.exec(t, "/markdown off")

	next := NewREPL(f.app, newScript(), true)
	require.True(t, next.markdown, "configured default before prefs load")
	require.NoError(t, next.Run(context.Background()))
	assert.False(t, next.markdown)

	_, err := f.repl.Execute(context.Background(), "/markdown sometimes")
	assert.Error(t, err)
}

func TestREPL_UnknownCommand(t *testing.T) {
	f := newReplFixture(t)
	_, err := f.repl.Execute(context.Background(), "/frobnicate")
	assert.ErrorContains(t, err, "unknown command")
}

// =============================================================================
// LOOP
// =============================================================================

func TestREPL_RunStopsOnQuit(t *testing.T) {
	f := newReplFixture(t)
	require.NoError(t, f.app.Service.Start(context.Background()))
	f.repl.in = newScript("Hi.", liner.ErrPromptAborted, "/bogus", "/quit", "never read")

	require.NoError(t, f.repl.Run(context.Background()))
	assert.Contains(t, f.out.String(), "echo: Hi.")
	assert.Contains(t, f.out.String(), "unknown command /bogus")
	assert.Equal(t, 1, f.app.Service.Conversations().Len())
}

func TestREPL_RunStopsOnEOF(t *testing.T) {
	f := newReplFixture(t)
	f.repl.in = newScript()
	assert.NoError(t, f.repl.Run(context.Background()))
}
