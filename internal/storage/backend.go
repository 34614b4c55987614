// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// DefaultQuotaBytes is the capacity of the file, sqlite and memory backends.
const DefaultQuotaBytes int64 = 5 << 20

// Backend stores raw values by key. Implementations replace values whole and
// return ErrNotFound for missing keys and ErrQuotaExceeded when full.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// =============================================================================
// MEMORY BACKEND
// =============================================================================

// MemoryBackend is a map-backed Backend with an optional byte quota.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string][]byte
	quota  int64
}

// NewMemoryBackend creates a memory backend. A quota <= 0 means unlimited.
func NewMemoryBackend(quota int64) *MemoryBackend {
	return &MemoryBackend{
		values: make(map[string][]byte),
		quota:  quota,
	}
}

// Name implements Backend.
func (m *MemoryBackend) Name() string { return BackendMemory }

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put implements Backend.
func (m *MemoryBackend) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.quota > 0 {
		var used int64
		for k, v := range m.values {
			if k != key {
				used += int64(len(v))
			}
		}
		if used+int64(len(value)) > m.quota {
			return ErrQuotaExceeded
		}
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	m.values[key] = stored
	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Keys implements Backend.
func (m *MemoryBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error { return nil }
