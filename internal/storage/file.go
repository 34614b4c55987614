// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jeranaias/sidechat/internal/util"
)

const fileExt = ".json"

// FileBackend keeps one file per key in a directory. The total size of the
// files it owns is bounded by a byte quota.
type FileBackend struct {
	dir   string
	quota int64
	mu    sync.Mutex
}

// NewFileBackend creates the directory if needed. A quota <= 0 means unlimited.
func NewFileBackend(dir string, quota int64) (*FileBackend, error) {
	if dir == "" {
		return nil, errors.New("file backend: empty data directory")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("file backend: create %s: %w", dir, err)
	}
	return &FileBackend{dir: dir, quota: quota}, nil
}

// Name implements Backend.
func (f *FileBackend) Name() string { return BackendFile }

// Dir returns the backing directory.
func (f *FileBackend) Dir() string { return f.dir }

// Get implements Backend.
func (f *FileBackend) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Put implements Backend.
func (f *FileBackend) Put(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.quota > 0 {
		used, err := f.usedExcept(key)
		if err != nil {
			return err
		}
		if used+int64(len(value)) > f.quota {
			return ErrQuotaExceeded
		}
	}

	// RELIABILITY: Atomic write with fsync prevents torn values on crash
	if err := util.AtomicWriteFile(f.path(key), value, 0600); err != nil {
		if isNoSpace(err) {
			return ErrQuotaExceeded
		}
		return err
	}
	return nil
}

// Delete implements Backend.
func (f *FileBackend) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Keys implements Backend.
func (f *FileBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var keys []string
	for _, entry := range entries {
		key, ok := keyFromName(entry)
		if ok && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements Backend.
func (f *FileBackend) Close() error { return nil }

func (f *FileBackend) path(key string) string {
	return filepath.Join(f.dir, url.QueryEscape(key)+fileExt)
}

// usedExcept sums the size of every owned file except the one for key.
func (f *FileBackend) usedExcept(key string) (int64, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0, err
	}

	var used int64
	for _, entry := range entries {
		k, ok := keyFromName(entry)
		if !ok || k == key {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		used += info.Size()
	}
	return used, nil
}

func keyFromName(entry os.DirEntry) (string, bool) {
	name := entry.Name()
	if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
		return "", false
	}
	key, err := url.QueryUnescape(strings.TrimSuffix(name, fileExt))
	if err != nil {
		return "", false
	}
	return key, true
}
