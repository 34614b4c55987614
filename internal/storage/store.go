// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/sidechat/internal/metrics"
)

// Namespace prefixes every key the store owns.
const Namespace = "sidechat:"

// Persisted keys.
const (
	KeyChats      = "chats"
	KeyActiveChat = "active_chat"
	KeyUIPrefs    = "ui_prefs"
)

// Shrinker returns a smaller replacement for a value that did not fit.
// Returning false means nothing smaller is available.
type Shrinker func() (any, bool)

// Store is a namespaced JSON store over a Backend. Saves are sequenced in the
// order they are issued.
type Store struct {
	backend Backend
	prefix  string
	log     *zerolog.Logger

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for swallowed failures.
func WithLogger(log *zerolog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			l := log.With().Str("component", "storage").Str("backend", s.backend.Name()).Logger()
			s.log = &l
		}
	}
}

// WithNamespace overrides the key prefix.
func WithNamespace(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// NewStore wraps a backend.
func NewStore(backend Backend, opts ...Option) *Store {
	nop := zerolog.Nop()
	s := &Store{
		backend: backend,
		prefix:  Namespace,
		log:     &nop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Save encodes value and writes it under key. On ErrQuotaExceeded, shrink is
// asked once for a smaller value which is then written instead. A save that
// still fails is logged and returned as an *Error matching ErrPersistence.
func (s *Store) Save(ctx context.Context, key string, value any, shrink Shrinker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := s.backend.Name()
	data, err := json.Marshal(value)
	if err != nil {
		metrics.IncStoreSave(name, metrics.SaveEncoding)
		return s.fail(key, err)
	}

	err = s.backend.Put(ctx, s.prefix+key, data)
	if err == nil {
		metrics.IncStoreSave(name, metrics.SaveOK)
		return nil
	}

	if IsQuotaExceeded(err) && shrink != nil {
		if smaller, ok := shrink(); ok {
			data, mErr := json.Marshal(smaller)
			if mErr != nil {
				metrics.IncStoreSave(name, metrics.SaveEncoding)
				return s.fail(key, mErr)
			}
			if err = s.backend.Put(ctx, s.prefix+key, data); err == nil {
				s.log.Warn().Str("key", key).Int("bytes", len(data)).Msg("quota exceeded, saved shrunk value")
				metrics.IncStoreSave(name, metrics.SaveShrunk)
				return nil
			}
		}
	}

	metrics.IncStoreSave(name, metrics.SaveFailed)
	return s.fail(key, err)
}

// Load decodes the value stored under key into dst. It reports false for
// missing, unreadable or malformed data.
func (s *Store) Load(ctx context.Context, key string, dst any) bool {
	data, err := s.backend.Get(ctx, s.prefix+key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn().Err(err).Str("key", key).Msg("load failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("malformed stored value ignored")
		return false
	}
	return true
}

// Delete removes one key.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx, s.prefix+key); err != nil {
		return &Error{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Clear removes every key in the store's namespace.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.backend.Keys(ctx, s.prefix)
	if err != nil {
		return &Error{Op: "clear", Err: err}
	}
	for _, k := range keys {
		if err := s.backend.Delete(ctx, k); err != nil {
			return &Error{Op: "clear", Key: k, Err: err}
		}
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) fail(key string, err error) error {
	s.log.Error().Err(err).Str("key", key).Msg("save failed")
	return &Error{Op: "save", Key: key, Err: err}
}
