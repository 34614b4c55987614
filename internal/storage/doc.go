// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the durable key/value store behind sidechat.
//
// Values are JSON-encoded and written whole through a Backend. Backends report
// capacity exhaustion with ErrQuotaExceeded; Store.Save then asks the caller
// for a smaller value once and retries. Loads never fail loudly: missing,
// unreadable or malformed data simply reads as absent.
//
// # Key Types
//
//   - Store: namespaced, mutex-sequenced JSON store
//   - Backend: raw byte storage (file, sqlite, redis, memory)
//   - Shrinker: caller hook producing a smaller value after a quota failure
//   - Error: persistence failure, matches ErrPersistence
//
// # Usage
//
//	store, err := storage.Open(ctx, storage.Options{Backend: storage.BackendFile, DataDir: dir})
//	err = store.Save(ctx, storage.KeyChats, chats, shrink)
//	ok := store.Load(ctx, storage.KeyChats, &chats)
//
// # Storage Location
//
// The file backend keeps one JSON file per key in ~/.sidechat/data/.
package storage
