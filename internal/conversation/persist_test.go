// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sidechat/internal/model"
	"github.com/jeranaias/sidechat/internal/storage"
)

func TestOpen_RestoresCollectionAndActive(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStore(storage.NewMemoryBackend(0))
	clk := newClock()
	cfg := Config{Capacity: 10, Now: clk.Now}

	first := New(store, cfg)
	a := first.Create(ctx, model.DefaultSettings())
	first.Append(ctx, a.ID, model.RoleUser, "Persist me. Please")
	b := first.Create(ctx, model.Settings{Temperature: 0.5, TopK: 10})
	require.True(t, first.SetActive(ctx, a.ID))

	second := Open(ctx, store, cfg)
	require.Equal(t, 2, second.Len())
	assert.Equal(t, a.ID, second.ActiveID())

	got, ok := second.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, "Persist me.", got.Title)
	require.Len(t, got.Messages, 1)

	gotB, ok := second.Get(b.ID)
	require.True(t, ok)
	assert.Equal(t, model.Settings{Temperature: 0.5, TopK: 10}, gotB.Settings)
	assert.Equal(t, b.ID, second.List()[0].ID)
}

func TestOpen_MalformedDataYieldsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend(0)
	require.NoError(t, backend.Put(ctx, storage.Namespace+storage.KeyChats, []byte(`{"broken":`)))
	require.NoError(t, backend.Put(ctx, storage.Namespace+storage.KeyActiveChat, []byte(`"ghost"`)))

	repo := Open(ctx, storage.NewStore(backend), DefaultConfig())
	assert.Equal(t, 0, repo.Len())
	_, ok := repo.Active()
	assert.False(t, ok)
}

func TestOpen_DropsUnaddressableEntries(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend(0)
	raw := `[{"id":"a","title":"","messages":[{"role":"user","content":"hi"},{"role":"system","content":"x"}]},{"id":""},{"id":"a","title":"dup"},null]`
	require.NoError(t, backend.Put(ctx, storage.Namespace+storage.KeyChats, []byte(raw)))

	repo := Open(ctx, storage.NewStore(backend), DefaultConfig())
	require.Equal(t, 1, repo.Len())

	got, _ := repo.Get("a")
	assert.Equal(t, model.DefaultTitle, got.Title)
	require.Len(t, got.Messages, 1, "messages with unknown roles are dropped")
	assert.Equal(t, model.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "a", repo.ActiveID(), "active defaults to the first conversation")
}

// =============================================================================
// EVICTION
// =============================================================================

func TestRepository_NeverExceedsCapacity(t *testing.T) {
	ctx := context.Background()
	repo, store, clk := newTestRepo(t, 3)

	for i := 0; i < 8; i++ {
		clk.Advance(time.Minute)
		repo.Create(ctx, model.DefaultSettings())

		var stored []*model.Conversation
		require.True(t, store.Load(ctx, storage.KeyChats, &stored))
		assert.LessOrEqual(t, len(stored), 3)
		assert.LessOrEqual(t, repo.Len(), 3)
	}
}

func TestRepository_EvictsLeastRecentlyTouched(t *testing.T) {
	ctx := context.Background()
	repo, store, clk := newTestRepo(t, 3)

	a := repo.Create(ctx, model.DefaultSettings())
	clk.Advance(time.Minute)
	b := repo.Create(ctx, model.DefaultSettings())
	clk.Advance(time.Minute)
	c := repo.Create(ctx, model.DefaultSettings())
	clk.Advance(time.Minute)

	// Touch the oldest so b becomes the least recently touched.
	repo.Append(ctx, a.ID, model.RoleUser, "still here")
	clk.Advance(time.Minute)
	d := repo.Create(ctx, model.DefaultSettings())

	_, ok := repo.Get(b.ID)
	assert.False(t, ok, "b should have been evicted")

	var stored []*model.Conversation
	require.True(t, store.Load(ctx, storage.KeyChats, &stored))
	ids := make([]string, len(stored))
	for i, s := range stored {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{d.ID, c.ID, a.ID}, ids, "collection order is kept")
}

func TestRepository_EvictingActiveMovesActivation(t *testing.T) {
	ctx := context.Background()
	repo, store, clk := newTestRepo(t, 2)

	a := repo.Create(ctx, model.DefaultSettings())
	clk.Advance(time.Minute)
	b := repo.Create(ctx, model.DefaultSettings())
	clk.Advance(time.Minute)
	require.True(t, repo.SetActive(ctx, a.ID))

	// A smaller capacity on reload evicts a, the active conversation.
	small := Open(ctx, store, Config{Capacity: 1, Now: clk.Now})
	assert.Equal(t, b.ID, small.ActiveID())
}

// =============================================================================
// QUOTA SHRINK
// =============================================================================

func TestRepository_QuotaHalvesPersistedCollection(t *testing.T) {
	ctx := context.Background()
	clk := newClock()

	// Each conversation encodes to ~1.3 KB; the quota fits four.
	backend := storage.NewMemoryBackend(6000)
	store := storage.NewStore(backend)
	repo := New(store, Config{Capacity: 50, Now: clk.Now})

	var ids []string
	for i := 0; i < 8; i++ {
		clk.Advance(time.Minute)
		conv := repo.Create(ctx, model.DefaultSettings())
		repo.Append(ctx, conv.ID, model.RoleUser, strings.Repeat("z", 1000))
		ids = append(ids, conv.ID)
	}

	// Memory keeps every conversation.
	assert.Equal(t, 8, repo.Len())

	var stored []*model.Conversation
	require.True(t, store.Load(ctx, storage.KeyChats, &stored))
	assert.Equal(t, 4, len(stored), "persisted payload is the most recent half")
	assert.Equal(t, ids[7], stored[0].ID)
	for _, s := range stored {
		assert.Contains(t, ids[4:], s.ID)
	}
}
