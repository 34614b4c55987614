// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/sidechat/internal/model"
	"github.com/jeranaias/sidechat/internal/storage"
)

// DefaultCapacity is the default maximum number of stored conversations.
const DefaultCapacity = 50

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds configuration for the repository.
type Config struct {
	// Capacity bounds the collection (default: 50)
	Capacity int

	// Now is the clock used for timestamps (default: time.Now)
	Now func() time.Time

	// Logger receives persistence failures (default: no-op)
	Logger *zerolog.Logger
}

// DefaultConfig returns the default repository configuration.
func DefaultConfig() Config {
	return Config{
		Capacity: DefaultCapacity,
		Now:      time.Now,
	}
}

// =============================================================================
// REPOSITORY
// =============================================================================

// Repository is the single owner of the conversation collection.
type Repository struct {
	mu sync.RWMutex

	store    *storage.Store
	convs    []*model.Conversation // newest first
	activeID string

	capacity int
	now      func() time.Time
	log      *zerolog.Logger

	onPersistError func(error)
}

// New creates an empty repository backed by store.
func New(store *storage.Store, cfg Config) *Repository {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	l := log.With().Str("component", "conversation").Logger()

	return &Repository{
		store:    store,
		convs:    make([]*model.Conversation, 0),
		capacity: cfg.Capacity,
		now:      cfg.Now,
		log:      &l,
	}
}

// SetPersistErrorCallback sets the function called when a save fails.
// It runs outside the repository lock.
func (r *Repository) SetPersistErrorCallback(fn func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPersistError = fn
}

// Capacity returns the configured capacity.
func (r *Repository) Capacity() int {
	return r.capacity
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns a copy of the conversation with id.
func (r *Repository) Get(id string) (*model.Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c := r.find(id); c != nil {
		return c.Clone(), true
	}
	return nil, false
}

// List returns copies of all conversations in collection order.
func (r *Repository) List() []*model.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAll(r.convs)
}

// Len returns the number of conversations.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.convs)
}

// ListByRecency returns copies ordered by last touch, most recent first.
// Ties keep collection order.
func (r *Repository) ListByRecency() []*model.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAll(byRecency(r.convs))
}

// Active returns the active conversation. When none is set it lazily
// becomes the first conversation of the collection.
func (r *Repository) Active() (*model.Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c := r.active(); c != nil {
		return c.Clone(), true
	}
	return nil, false
}

// ActiveID returns the active conversation id, or "" when there is none.
func (r *Repository) ActiveID() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c := r.active(); c != nil {
		return c.ID
	}
	return ""
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Create inserts a new empty conversation at the front, makes it active and
// persists.
func (r *Repository) Create(ctx context.Context, settings model.Settings) *model.Conversation {
	r.mu.Lock()
	conv := model.NewConversation(settings, r.now())
	r.convs = append([]*model.Conversation{conv}, r.convs...)
	r.activeID = conv.ID
	out := conv.Clone()
	cb, err := r.persistLocked(ctx)
	r.mu.Unlock()

	r.report(cb, err)
	return out
}

// Append adds a message to the conversation with id and persists. The first
// user message of an untitled conversation names it. Unknown ids return
// false without side effects.
func (r *Repository) Append(ctx context.Context, id string, role model.Role, content string) (*model.Message, bool) {
	r.mu.Lock()
	conv := r.find(id)
	if conv == nil {
		r.mu.Unlock()
		return nil, false
	}
	msg := conv.AddMessage(role, content, r.now())
	cb, err := r.persistLocked(ctx)
	r.mu.Unlock()

	r.report(cb, err)
	return &msg, true
}

// Delete removes the conversation with id. Deleting the active conversation
// moves activation to the new first conversation, or to none.
func (r *Repository) Delete(ctx context.Context, id string) bool {
	r.mu.Lock()
	idx := r.indexOf(id)
	if idx < 0 {
		r.mu.Unlock()
		return false
	}
	r.convs = append(r.convs[:idx], r.convs[idx+1:]...)
	if r.activeID == id {
		r.resetActiveLocked()
	}
	cb, err := r.persistLocked(ctx)
	r.mu.Unlock()

	r.report(cb, err)
	return true
}

// SetActive makes the conversation with id active and persists the choice.
func (r *Repository) SetActive(ctx context.Context, id string) bool {
	r.mu.Lock()
	if r.find(id) == nil {
		r.mu.Unlock()
		return false
	}
	r.activeID = id
	cb, err := r.saveActiveLocked(ctx)
	r.mu.Unlock()

	r.report(cb, err)
	return true
}

// Rename sets an explicit title. An empty title restores the default.
func (r *Repository) Rename(ctx context.Context, id, title string) bool {
	return r.mutate(ctx, id, func(c *model.Conversation, now time.Time) {
		c.SetTitle(title, now)
	})
}

// UpdateSettings replaces the settings the next model session will use.
func (r *Repository) UpdateSettings(ctx context.Context, id string, settings model.Settings) bool {
	return r.mutate(ctx, id, func(c *model.Conversation, now time.Time) {
		c.SetSettings(settings, now)
	})
}

// Clear drops every conversation and removes all stored keys.
func (r *Repository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.convs = make([]*model.Conversation, 0)
	r.activeID = ""
	return r.store.Clear(ctx)
}

func (r *Repository) mutate(ctx context.Context, id string, fn func(*model.Conversation, time.Time)) bool {
	r.mu.Lock()
	conv := r.find(id)
	if conv == nil {
		r.mu.Unlock()
		return false
	}
	fn(conv, r.now())
	cb, err := r.persistLocked(ctx)
	r.mu.Unlock()

	r.report(cb, err)
	return true
}

// =============================================================================
// HELPERS
// =============================================================================

func (r *Repository) find(id string) *model.Conversation {
	if i := r.indexOf(id); i >= 0 {
		return r.convs[i]
	}
	return nil
}

func (r *Repository) indexOf(id string) int {
	for i, c := range r.convs {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// active resolves the active conversation, defaulting to the first one.
func (r *Repository) active() *model.Conversation {
	if c := r.find(r.activeID); c != nil {
		return c
	}
	if len(r.convs) == 0 {
		r.activeID = ""
		return nil
	}
	r.activeID = r.convs[0].ID
	return r.convs[0]
}

func (r *Repository) resetActiveLocked() {
	if len(r.convs) > 0 {
		r.activeID = r.convs[0].ID
	} else {
		r.activeID = ""
	}
}

func (r *Repository) report(cb func(error), err error) {
	if err != nil && cb != nil {
		cb(err)
	}
}

func cloneAll(convs []*model.Conversation) []*model.Conversation {
	out := make([]*model.Conversation, len(convs))
	for i, c := range convs {
		out[i] = c.Clone()
	}
	return out
}
