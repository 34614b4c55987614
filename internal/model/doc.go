// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// These are the durable, serializable records of a chat. They hold no model
// context: a live model session is owned by the session package and is
// rebuilt from Settings whenever it has to be.
//
// # Key Types
//
//   - Conversation: titled, ordered message history with its own Settings
//   - Message: one immutable user or assistant message
//   - Settings: sampling configuration the next model session will use
//   - Role: message role enumeration (user, assistant)
//
// # Usage
//
//	conv := model.NewConversation(model.DefaultSettings(), time.Now())
//	conv.AddMessage(model.RoleUser, "Hello. How are you?", time.Now())
//	fmt.Println(conv.Title) // "Hello."
package model
