// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sidechat/internal/conversation"
	"github.com/jeranaias/sidechat/internal/host"
	"github.com/jeranaias/sidechat/internal/host/hosttest"
	"github.com/jeranaias/sidechat/internal/model"
	"github.com/jeranaias/sidechat/internal/session"
	"github.com/jeranaias/sidechat/internal/storage"
	"github.com/jeranaias/sidechat/internal/stream"
)

type notice struct {
	kind Kind
	err  error
}

type recorder struct {
	mu      sync.Mutex
	notices []notice
}

func (r *recorder) Notify(kind Kind, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice{kind, err})
}

func (r *recorder) kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.notices))
	for i, n := range r.notices {
		out[i] = n.kind
	}
	return out
}

type fixture struct {
	svc        *Service
	capability *hosttest.Capability
	store      *storage.Store
	notes      *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithBackend(t, storage.NewMemoryBackend(0))
}

func newFixtureWithBackend(t *testing.T, backend storage.Backend) *fixture {
	t.Helper()
	store := storage.NewStore(backend)
	capability := hosttest.New()
	notes := &recorder{}

	repo := conversation.New(store, conversation.DefaultConfig())
	coord := session.NewCoordinator(capability, session.DefaultConfig())
	svc := New(repo, coord, stream.NewAssembler(nil), Options{Store: store, Notifier: notes})
	require.NoError(t, svc.Start(context.Background()))

	return &fixture{svc: svc, capability: capability, store: store, notes: notes}
}

// waitForPrompt blocks until the newest handle has received n prompts.
func (f *fixture) waitForPrompt(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		h := f.capability.Last()
		return h != nil && len(h.Prompts()) == n
	}, 2*time.Second, 5*time.Millisecond)
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_CreatesConversationAndAppendsReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var deltas []string
	msg, err := f.svc.Submit(ctx, "Hello. How are you?", func(d string) {
		deltas = append(deltas, d)
	})
	require.NoError(t, err)

	assert.Equal(t, model.RoleAssistant, msg.Role)
	assert.Equal(t, "echo: Hello. How are you?", msg.Content)
	assert.Equal(t, []string{"echo:", " Hello.", " How", " are", " you?"}, deltas)

	conv, ok := f.svc.Conversations().Active()
	require.True(t, ok)
	assert.Equal(t, "Hello.", conv.Title)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, 1, f.capability.Creates())
}

func TestSubmit_ReusesSessionAcrossPrompts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Submit(ctx, fmt.Sprintf("prompt %d", i), nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.capability.Creates())
	assert.Equal(t, 0, f.capability.Destroys())
	assert.Len(t, f.capability.Last().Prompts(), 3)
}

func TestSubmit_EmptyPrompt(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Submit(context.Background(), "  \n", nil)
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Equal(t, KindInvalid, Classify(err))
	assert.Equal(t, 0, f.svc.Conversations().Len())
}

func TestSubmit_Unavailable(t *testing.T) {
	store := storage.NewStore(storage.NewMemoryBackend(0))
	capability := hosttest.New()
	capability.ProbeErr = fmt.Errorf("ollama down: %w", host.ErrUnavailable)
	repo := conversation.New(store, conversation.DefaultConfig())
	notes := &recorder{}
	svc := New(repo, session.NewCoordinator(capability, session.DefaultConfig()), stream.NewAssembler(nil),
		Options{Notifier: notes})

	err := svc.Start(context.Background())
	require.ErrorIs(t, err, ErrCapabilityUnavailable)
	assert.False(t, svc.Available())

	_, err = svc.Submit(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)
	assert.Equal(t, KindUnavailable, Classify(err))
	assert.Empty(t, notes.kinds(), "unavailability is returned, not notified")

	// Browsing still works.
	svc.NewConversation(context.Background())
	assert.Equal(t, 1, svc.Conversations().Len())
}

func TestSubmit_SessionCreateFailure(t *testing.T) {
	f := newFixture(t)
	f.capability.SetCreateErr(errors.New("out of memory"))

	_, err := f.svc.Submit(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.Equal(t, KindSessionCreate, Classify(err))
	assert.Equal(t, []Kind{KindSessionCreate}, f.notes.kinds())
	assert.True(t, f.svc.Available(), "a transient failure keeps prompting enabled")

	// The user message is kept and a retry works.
	f.capability.SetCreateErr(nil)
	_, err = f.svc.Submit(context.Background(), "again", nil)
	require.NoError(t, err)
	conv, _ := f.svc.Conversations().Active()
	assert.Len(t, conv.Messages, 3)
}

func TestSubmit_StreamFailureDiscardsPartial(t *testing.T) {
	f := newFixture(t)
	f.capability.SetResponder(func(host.Config, string) hosttest.Reply {
		return hosttest.Reply{Snapshots: []string{"part"}, Err: errors.New("connection reset")}
	})

	var deltas []string
	_, err := f.svc.Submit(context.Background(), "hi", func(d string) { deltas = append(deltas, d) })
	require.Error(t, err)
	assert.ErrorIs(t, err, stream.ErrStreamFailed)
	assert.Equal(t, KindStream, Classify(err))
	assert.Equal(t, []Kind{KindStream}, f.notes.kinds())
	assert.Equal(t, []string{"part"}, deltas)

	conv, _ := f.svc.Conversations().Active()
	require.Len(t, conv.Messages, 1, "no assistant message for a failed stream")
	assert.False(t, f.svc.Busy())
}

func TestSubmit_BusyWhileStreaming(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.capability.SetResponder(func(host.Config, string) hosttest.Reply {
		return hosttest.Reply{Snapshots: []string{"a", "ab"}, Gate: gate}
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Submit(context.Background(), "first", nil)
		done <- err
	}()
	f.waitForPrompt(t, 1)

	_, err := f.svc.Submit(context.Background(), "second", nil)
	assert.ErrorIs(t, err, ErrBusy)
	assert.True(t, f.svc.Busy())

	close(gate)
	require.NoError(t, <-done)
	assert.False(t, f.svc.Busy())
}

func TestSubmit_CancelledIsNotNotified(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	defer close(gate)
	f.capability.SetResponder(func(host.Config, string) hosttest.Reply {
		return hosttest.Reply{Snapshots: []string{"a"}, Gate: gate}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Submit(ctx, "first", nil)
		done <- err
	}()
	f.waitForPrompt(t, 1)
	cancel()

	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.notes.kinds())
	assert.False(t, f.svc.Busy())
}

func TestSubmit_AbandonedOnNewConversation(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	defer close(gate)
	f.capability.SetResponder(func(host.Config, string) hosttest.Reply {
		return hosttest.Reply{Snapshots: []string{"a", "ab"}, Gate: gate}
	})

	first := f.svc.NewConversation(context.Background())

	var mu sync.Mutex
	var deltas []string
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Submit(context.Background(), "first", func(d string) {
			mu.Lock()
			deltas = append(deltas, d)
			mu.Unlock()
		})
		done <- err
	}()
	f.waitForPrompt(t, 1)

	second := f.svc.NewConversation(context.Background())
	err := <-done
	assert.ErrorIs(t, err, ErrAbandoned)
	assert.Equal(t, KindAbandoned, Classify(err))
	assert.Empty(t, f.notes.kinds(), "abandonment is not a failure")

	mu.Lock()
	assert.Empty(t, deltas)
	mu.Unlock()

	got, ok := f.svc.Conversations().Get(first.ID)
	require.True(t, ok)
	assert.Len(t, got.Messages, 1, "stale reply must not be merged")
	assert.Equal(t, second.ID, f.svc.Conversations().ActiveID())
	assert.True(t, f.capability.Handles()[0].Destroyed())
}

func TestSubmit_LeftDuringSessionCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.svc.NewConversation(ctx)
	b := f.svc.NewConversation(ctx)
	require.NoError(t, f.svc.Switch(ctx, a.ID))

	// A switch that lands before the coordinator sees the create has no
	// session to tear down.
	var once sync.Once
	f.capability.OnCreate = func(host.Config) {
		once.Do(func() {
			f.svc.mu.Lock()
			f.svc.abandonLocked()
			f.svc.mu.Unlock()
			f.svc.Conversations().SetActive(ctx, b.ID)
		})
	}

	_, err := f.svc.Submit(ctx, "in a", nil)
	assert.ErrorIs(t, err, ErrAbandoned)
	assert.Empty(t, f.notes.kinds())

	_, live := f.svc.Usage()
	assert.False(t, live, "no session may stay bound to the left conversation")
	assert.Equal(t, 0, f.capability.Live())
	require.Len(t, f.capability.Handles(), 1)
	assert.Empty(t, f.capability.Handles()[0].Prompts(), "nothing is sent on a stale session")

	got, ok := f.svc.Conversations().Get(a.ID)
	require.True(t, ok)
	assert.Len(t, got.Messages, 1)
}

// =============================================================================
// NAVIGATION
// =============================================================================

func TestSwitch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.svc.NewConversation(ctx)
	_, err := f.svc.Submit(ctx, "in a", nil)
	require.NoError(t, err)
	b := f.svc.NewConversation(ctx)
	require.Equal(t, 1, f.capability.Destroys())

	require.NoError(t, f.svc.Switch(ctx, a.ID))
	assert.Equal(t, a.ID, f.svc.Conversations().ActiveID())

	// Switching to the active conversation is a no-op.
	_, err = f.svc.Submit(ctx, "again in a", nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.Switch(ctx, a.ID))
	assert.Equal(t, 1, f.capability.Destroys())

	require.NoError(t, f.svc.Switch(ctx, b.ID))
	assert.Equal(t, 2, f.capability.Destroys())

	err = f.svc.Switch(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindNotFound, Classify(err))
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.svc.NewConversation(ctx)
	b := f.svc.NewConversation(ctx)
	_, err := f.svc.Submit(ctx, "in b", nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, b.ID))
	assert.Equal(t, 0, f.capability.Live())
	assert.Equal(t, a.ID, f.svc.Conversations().ActiveID())

	require.NoError(t, f.svc.Delete(ctx, a.ID))
	assert.Equal(t, "", f.svc.Conversations().ActiveID())
	assert.ErrorIs(t, f.svc.Delete(ctx, a.ID), ErrNotFound)
}

func TestRename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.svc.NewConversation(ctx)

	require.NoError(t, f.svc.Rename(ctx, conv.ID, "  Trip  "))
	got, _ := f.svc.Conversations().Get(conv.ID)
	assert.Equal(t, "Trip", got.Title)
	assert.ErrorIs(t, f.svc.Rename(ctx, "missing", "x"), ErrNotFound)
}

func TestUpdateSettings_RecreatesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, "hi", nil)
	require.NoError(t, err)
	conv, _ := f.svc.Conversations().Active()

	// Unchanged settings keep the session.
	require.NoError(t, f.svc.UpdateSettings(ctx, conv.ID, conv.Settings))
	assert.Equal(t, 0, f.capability.Destroys())

	next := model.Settings{Temperature: conv.Settings.Temperature, TopK: conv.Settings.TopK + 1}
	require.NoError(t, f.svc.UpdateSettings(ctx, conv.ID, next))
	assert.Equal(t, 1, f.capability.Destroys())

	_, err = f.svc.Submit(ctx, "hi again", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.capability.Creates())
	assert.Equal(t, next.TopK, f.capability.Last().Config().TopK)
}

func TestUpdateSettings_Invalid(t *testing.T) {
	f := newFixture(t)
	conv := f.svc.NewConversation(context.Background())

	err := f.svc.UpdateSettings(context.Background(), conv.ID, model.Settings{Temperature: 5, TopK: 3})
	assert.ErrorIs(t, err, model.ErrInvalidSettings)
	assert.Equal(t, KindInvalid, Classify(err))
}

func TestReset_KeepsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, "hi", nil)
	require.NoError(t, err)
	f.svc.Reset()
	assert.Equal(t, 0, f.capability.Live())

	_, err = f.svc.Submit(ctx, "after reset", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.capability.Creates())

	conv, _ := f.svc.Conversations().Active()
	assert.Len(t, conv.Messages, 4)
}

func TestShutdown_Persists(t *testing.T) {
	backend := storage.NewMemoryBackend(0)
	f := newFixtureWithBackend(t, backend)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, "remember me", nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.Shutdown(ctx))
	assert.Equal(t, 0, f.capability.Live())

	reopened := conversation.Open(ctx, storage.NewStore(backend), conversation.DefaultConfig())
	conv, ok := reopened.Active()
	require.True(t, ok)
	assert.Equal(t, "remember me", conv.Title)
	assert.Len(t, conv.Messages, 2)
}

// =============================================================================
// EXPORT, PREFS, CONFIG
// =============================================================================

func TestExport_Active(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Export("")
	assert.ErrorIs(t, err, ErrNotFound)

	f.svc.NewConversation(context.Background())
	data, err := f.svc.Export("")
	require.NoError(t, err)
	assert.Contains(t, string(data), "# New Chat")
}

func TestPrefs_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	type prefs struct {
		Markdown bool `json:"markdown"`
	}
	var got prefs
	assert.False(t, f.svc.Prefs(ctx, &got))

	require.NoError(t, f.svc.SavePrefs(ctx, prefs{Markdown: true}))
	require.True(t, f.svc.Prefs(ctx, &got))
	assert.True(t, got.Markdown)
}

func TestPersistenceFailureIsNotified(t *testing.T) {
	f := newFixtureWithBackend(t, storage.NewMemoryBackend(64))

	conv := f.svc.NewConversation(context.Background())
	require.NotNil(t, conv, "the in-memory collection still changes")
	assert.Contains(t, f.notes.kinds(), KindPersistence)
}

func TestApplyConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, "hi", nil)
	require.NoError(t, err)

	next := model.Settings{Temperature: 0.2, TopK: 10}
	require.NoError(t, f.svc.ApplyConfig(next, ""))
	assert.Equal(t, next, f.svc.Defaults())
	assert.Equal(t, 0, f.capability.Destroys(), "same initial context keeps the session")

	require.NoError(t, f.svc.ApplyConfig(next, "You are terse."))
	assert.Equal(t, 1, f.capability.Destroys())

	conv := f.svc.NewConversation(ctx)
	assert.Equal(t, next, conv.Settings)
	_, err = f.svc.Submit(ctx, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "You are terse.", f.capability.Last().Config().InitialContext)

	assert.Error(t, f.svc.ApplyConfig(model.Settings{TopK: 0}, ""))
}

func TestUsage(t *testing.T) {
	f := newFixture(t)
	_, ok := f.svc.Usage()
	assert.False(t, ok)

	_, err := f.svc.Submit(context.Background(), "hi", nil)
	require.NoError(t, err)
	u, ok := f.svc.Usage()
	require.True(t, ok)
	assert.Equal(t, 4096, u.Quota)
	assert.Greater(t, u.Used, 0)
}

// =============================================================================
// CLASSIFY
// =============================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"busy", ErrBusy, KindBusy},
		{"abandoned", fmt.Errorf("x: %w", ErrAbandoned), KindAbandoned},
		{"unavailable host", fmt.Errorf("x: %w", host.ErrUnavailable), KindUnavailable},
		{"session unavailable", &session.Error{Kind: session.KindUnavailable, Err: host.ErrUnavailable}, KindUnavailable},
		{"session create", &session.Error{Kind: session.KindCreateFailed, Err: errors.New("oom")}, KindSessionCreate},
		{"stream", &stream.Error{Err: errors.New("reset")}, KindStream},
		{"persistence", &storage.Error{Op: "put", Key: "chats", Err: storage.ErrQuotaExceeded}, KindPersistence},
		{"not found", ErrNotFound, KindNotFound},
		{"storage not found", storage.ErrNotFound, KindNotFound},
		{"unknown", errors.New("boom"), KindUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
