// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Options selects and configures a backend for Open.
type Options struct {
	Backend    string // file, sqlite, redis, memory
	DataDir    string
	QuotaBytes int64

	SQLitePath string // default: <DataDir>/sidechat.db

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Namespace string // key prefix (default: Namespace)

	Logger *zerolog.Logger
}

// Open builds the configured backend and wraps it in a Store.
func Open(ctx context.Context, opts Options) (*Store, error) {
	quota := opts.QuotaBytes
	if quota == 0 {
		quota = DefaultQuotaBytes
	}

	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(opts.Backend) {
	case "", BackendFile:
		backend, err = NewFileBackend(opts.DataDir, quota)
	case BackendSQLite:
		path := opts.SQLitePath
		if path == "" {
			path = filepath.Join(opts.DataDir, "sidechat.db")
		}
		backend, err = NewSQLiteBackend(ctx, path, quota)
	case BackendRedis:
		var client RedisClient
		client, err = NewRedisClient(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		if err == nil {
			backend = NewRedisBackend(client, quota)
		}
	case BackendMemory:
		backend = NewMemoryBackend(quota)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	storeOpts := []Option{WithLogger(opts.Logger)}
	if opts.Namespace != "" {
		storeOpts = append(storeOpts, WithNamespace(opts.Namespace))
	}
	return NewStore(backend, storeOpts...), nil
}
