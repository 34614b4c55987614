// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"sort"

	"github.com/jeranaias/sidechat/internal/metrics"
	"github.com/jeranaias/sidechat/internal/model"
	"github.com/jeranaias/sidechat/internal/storage"
)

// Open creates a repository and restores the collection and active id from
// store. Missing or malformed data yields an empty repository.
func Open(ctx context.Context, store *storage.Store, cfg Config) *Repository {
	r := New(store, cfg)

	var stored []*model.Conversation
	if store.Load(ctx, storage.KeyChats, &stored) {
		r.convs = sanitize(stored)
	}

	var activeID string
	if store.Load(ctx, storage.KeyActiveChat, &activeID) && r.find(activeID) != nil {
		r.activeID = activeID
	}

	if n := r.evictLocked(); n > 0 {
		r.log.Info().Int("evicted", n).Int("capacity", r.capacity).Msg("collection trimmed on load")
	}

	r.log.Debug().Int("conversations", len(r.convs)).Str("active", r.activeID).Msg("repository loaded")
	return r
}

// Persist saves the collection and the active id.
func (r *Repository) Persist(ctx context.Context) error {
	r.mu.Lock()
	cb, err := r.persistLocked(ctx)
	r.mu.Unlock()

	r.report(cb, err)
	return err
}

// persistLocked evicts over-capacity entries, then writes the collection and
// the active id. It returns the error callback to run after unlocking.
func (r *Repository) persistLocked(ctx context.Context) (func(error), error) {
	if n := r.evictLocked(); n > 0 {
		r.log.Info().Int("evicted", n).Int("capacity", r.capacity).Msg("evicted least recently touched conversations")
	}

	errChats := r.store.Save(ctx, storage.KeyChats, r.convs, r.shrinker())
	errActive := r.store.Save(ctx, storage.KeyActiveChat, r.activeID, nil)

	err := errors.Join(errChats, errActive)
	if err != nil {
		r.log.Error().Err(err).Msg("persist failed, continuing with in-memory state")
	}
	return r.onPersistError, err
}

func (r *Repository) saveActiveLocked(ctx context.Context) (func(error), error) {
	err := r.store.Save(ctx, storage.KeyActiveChat, r.activeID, nil)
	if err != nil {
		r.log.Error().Err(err).Msg("persist active id failed")
	}
	return r.onPersistError, err
}

// evictLocked drops the least recently touched conversations beyond capacity
// and returns how many were dropped.
func (r *Repository) evictLocked() int {
	excess := len(r.convs) - r.capacity
	if excess <= 0 {
		return 0
	}

	keep := make(map[string]bool, r.capacity)
	for _, c := range byRecency(r.convs)[:r.capacity] {
		keep[c.ID] = true
	}

	kept := make([]*model.Conversation, 0, r.capacity)
	for _, c := range r.convs {
		if keep[c.ID] {
			kept = append(kept, c)
		}
	}
	r.convs = kept

	if !keep[r.activeID] {
		r.resetActiveLocked()
	}

	metrics.AddEvictions(excess)
	return excess
}

// shrinker offers the most recently touched half of the collection when the
// full collection does not fit. Memory keeps everything.
func (r *Repository) shrinker() storage.Shrinker {
	convs := r.convs
	return func() (any, bool) {
		if len(convs) < 2 {
			return nil, false
		}
		half := len(convs) / 2

		keep := make(map[string]bool, half)
		for _, c := range byRecency(convs)[:half] {
			keep[c.ID] = true
		}
		out := make([]*model.Conversation, 0, half)
		for _, c := range convs {
			if keep[c.ID] {
				out = append(out, c)
			}
		}
		return out, true
	}
}

// byRecency returns a new slice sorted by TouchedAt, most recent first.
func byRecency(convs []*model.Conversation) []*model.Conversation {
	sorted := make([]*model.Conversation, len(convs))
	copy(sorted, convs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TouchedAt.After(sorted[j].TouchedAt)
	})
	return sorted
}

// sanitize drops entries that cannot be addressed and fills zero fields.
func sanitize(stored []*model.Conversation) []*model.Conversation {
	seen := make(map[string]bool, len(stored))
	out := make([]*model.Conversation, 0, len(stored))
	for _, c := range stored {
		if c == nil || c.ID == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		if c.Title == "" {
			c.Title = model.DefaultTitle
		}
		msgs := make([]model.Message, 0, len(c.Messages))
		for _, m := range c.Messages {
			if m.Role.Valid() {
				msgs = append(msgs, m)
			}
		}
		c.Messages = msgs
		if c.TouchedAt.IsZero() {
			c.TouchedAt = c.CreatedAt
		}
		out = append(out, c)
	}
	return out
}
