// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

// =============================================================================
// SAVE / LOAD TESTS
// =============================================================================

func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend(0))

	in := []record{{ID: "a", Body: "one"}, {ID: "b", Body: "two"}}
	require.NoError(t, store.Save(ctx, KeyChats, in, nil))

	var out []record
	require.True(t, store.Load(ctx, KeyChats, &out))
	assert.Equal(t, in, out)
}

func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(NewMemoryBackend(0))

	var out []record
	assert.False(t, store.Load(context.Background(), KeyChats, &out))
	assert.Nil(t, out)
}

func TestStore_LoadMalformed(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(0)
	require.NoError(t, backend.Put(ctx, Namespace+KeyChats, []byte("{not json")))

	store := NewStore(backend)
	var out []record
	assert.False(t, store.Load(ctx, KeyChats, &out))
}

func TestStore_KeysAreNamespaced(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(0)
	store := NewStore(backend)

	require.NoError(t, store.Save(ctx, KeyActiveChat, "abc", nil))

	raw, err := backend.Get(ctx, "sidechat:active_chat")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, string(raw))
}

func TestStore_SeparateNamespaces(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(0)
	home := NewStore(backend)
	work := NewStore(backend, WithNamespace("work:"))

	require.NoError(t, home.Save(ctx, KeyActiveChat, "home-id", nil))
	require.NoError(t, work.Save(ctx, KeyActiveChat, "work-id", nil))

	var got string
	require.True(t, work.Load(ctx, KeyActiveChat, &got))
	assert.Equal(t, "work-id", got)

	require.NoError(t, work.Clear(ctx))
	assert.False(t, work.Load(ctx, KeyActiveChat, &got))
	require.True(t, home.Load(ctx, KeyActiveChat, &got))
	assert.Equal(t, "home-id", got)
}

// =============================================================================
// QUOTA TESTS
// =============================================================================

func TestStore_QuotaShrinkRetry(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend(64))

	big := strings.Repeat("x", 200)
	small := "fits"
	calls := 0
	err := store.Save(ctx, KeyChats, big, func() (any, bool) {
		calls++
		return small, true
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	var out string
	require.True(t, store.Load(ctx, KeyChats, &out))
	assert.Equal(t, small, out)
}

func TestStore_QuotaRetriesOnlyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend(16))

	calls := 0
	err := store.Save(ctx, KeyChats, strings.Repeat("x", 100), func() (any, bool) {
		calls++
		return strings.Repeat("y", 50), true
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, IsQuotaExceeded(err))

	var storeErr *Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "save", storeErr.Op)
	assert.Equal(t, KeyChats, storeErr.Key)
}

func TestStore_QuotaWithoutShrinker(t *testing.T) {
	store := NewStore(NewMemoryBackend(8))
	err := store.Save(context.Background(), KeyChats, strings.Repeat("x", 100), nil)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestStore_QuotaShrinkerDeclines(t *testing.T) {
	store := NewStore(NewMemoryBackend(8))
	err := store.Save(context.Background(), KeyChats, strings.Repeat("x", 100), func() (any, bool) {
		return nil, false
	})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestStore_QuotaReplacesOwnValue(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend(40))

	// The old value's size must not count against its own replacement.
	require.NoError(t, store.Save(ctx, KeyChats, strings.Repeat("a", 30), nil))
	require.NoError(t, store.Save(ctx, KeyChats, strings.Repeat("b", 30), nil))
}

func TestStore_EncodingFailure(t *testing.T) {
	store := NewStore(NewMemoryBackend(0))
	err := store.Save(context.Background(), KeyChats, make(chan int), nil)
	assert.ErrorIs(t, err, ErrPersistence)
}

// =============================================================================
// CLEAR / CONCURRENCY TESTS
// =============================================================================

func TestStore_ClearOnlyOwnNamespace(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(0)
	require.NoError(t, backend.Put(ctx, "other:thing", []byte(`1`)))

	store := NewStore(backend)
	require.NoError(t, store.Save(ctx, KeyChats, []record{}, nil))
	require.NoError(t, store.Save(ctx, KeyActiveChat, "x", nil))
	require.NoError(t, store.Save(ctx, KeyUIPrefs, map[string]bool{"dark": true}, nil))

	require.NoError(t, store.Clear(ctx))

	keys, err := backend.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"other:thing"}, keys)
}

func TestStore_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend(0))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Save(ctx, KeyActiveChat, fmt.Sprintf("id-%d", i), nil)
		}(i)
	}
	wg.Wait()

	var out string
	require.True(t, store.Load(ctx, KeyActiveChat, &out))
	assert.True(t, strings.HasPrefix(out, "id-"))
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "floppy"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestOpen_Namespace(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, Options{Backend: BackendMemory, Namespace: "work:"})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(ctx, KeyActiveChat, "x", nil))
	keys, err := store.Backend().Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"work:active_chat"}, keys)
}

func TestOpen_Memory(t *testing.T) {
	store, err := Open(context.Background(), Options{Backend: "MEMORY"})
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, BackendMemory, store.Backend().Name())
}
