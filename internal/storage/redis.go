// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
)

// RedisClient is the subset of redis commands the backend needs.
type RedisClient interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, match string) ([]string, error)
	Close() error
}

var _ RedisClient = (*redClient)(nil)

type redClient struct {
	cli *redis.Client
}

// NewRedisClient connects to addr and pings it.
func NewRedisClient(ctx context.Context, addr, password string, db int) (RedisClient, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return &redClient{cli: c}, nil
}

func (c *redClient) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *redClient) Get(ctx context.Context, key string) (string, error) {
	return c.cli.Get(ctx, key).Result()
}

func (c *redClient) Set(ctx context.Context, key string, value []byte) error {
	return c.cli.Set(ctx, key, value, 0).Err()
}

func (c *redClient) Del(ctx context.Context, keys ...string) error {
	return c.cli.Del(ctx, keys...).Err()
}

func (c *redClient) Scan(ctx context.Context, match string) ([]string, error) {
	var keys []string
	iter := c.cli.Scan(ctx, 0, match, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

func (c *redClient) Close() error { return c.cli.Close() }

// =============================================================================
// REDIS BACKEND
// =============================================================================

// RedisBackend stores values as plain redis strings. Values larger than
// maxValue and OOM replies from the server read as ErrQuotaExceeded.
type RedisBackend struct {
	client   RedisClient
	maxValue int64
}

// NewRedisBackend wraps a connected client. maxValue <= 0 means unlimited.
func NewRedisBackend(client RedisClient, maxValue int64) *RedisBackend {
	return &RedisBackend{client: client, maxValue: maxValue}
}

// Name implements Backend.
func (r *RedisBackend) Name() string { return BackendRedis }

// Get implements Backend.
func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}

// Put implements Backend.
func (r *RedisBackend) Put(ctx context.Context, key string, value []byte) error {
	if r.maxValue > 0 && int64(len(value)) > r.maxValue {
		return ErrQuotaExceeded
	}
	if err := r.client.Set(ctx, key, value); err != nil {
		if strings.HasPrefix(err.Error(), "OOM") {
			return ErrQuotaExceeded
		}
		return err
	}
	return nil
}

// Delete implements Backend.
func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key)
}

// Keys implements Backend.
func (r *RedisBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := r.client.Scan(ctx, escapeGlob(prefix)+"*")
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements Backend.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

// escapeGlob escapes redis MATCH metacharacters.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
