// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation owns the in-memory conversation collection and its
// persistence through the durable store.
//
// The collection keeps insertion order (newest first). Every mutation saves
// the collection and the active conversation id; each save first evicts the
// least recently touched conversations beyond the configured capacity.
//
// # Key Types
//
//   - Repository: CRUD, search, grouping, activation, persistence
//   - Group: conversations sharing an age bucket
//   - Config: capacity, clock, logger
//
// # Usage
//
//	repo := conversation.Open(ctx, store, conversation.DefaultConfig())
//	conv := repo.Create(ctx, model.DefaultSettings())
//	repo.Append(ctx, conv.ID, model.RoleUser, "Hello. How are you?")
//	for _, g := range repo.Groups(time.Now()) {
//		fmt.Println(g.Label, len(g.Conversations))
//	}
//
// Returned conversations are copies; mutate through the Repository.
package conversation
