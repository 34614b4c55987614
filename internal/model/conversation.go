// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a complete chat conversation with history and metadata.
//
// Settings always describe the configuration the next model session for this
// conversation will use; messages already recorded keep no link to the
// settings they were produced with.
type Conversation struct {
	// Identity
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	TouchedAt time.Time `json:"touchedAt"`

	// Messages, append-only
	Messages []Message `json:"messages"`

	// Model configuration
	Settings Settings `json:"settings"`
}

// NewConversation creates an empty conversation with a generated ID.
func NewConversation(settings Settings, now time.Time) *Conversation {
	return &Conversation{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		CreatedAt: now,
		TouchedAt: now,
		Messages:  make([]Message, 0),
		Settings:  settings,
	}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// AddMessage appends a message and touches the conversation. The first user
// message names a conversation that still carries DefaultTitle.
func (c *Conversation) AddMessage(role Role, content string, now time.Time) Message {
	msg := NewMessage(role, content, now)
	c.Messages = append(c.Messages, msg)
	c.Touch(now)

	if role == RoleUser && c.Title == DefaultTitle && c.UserMessageCount() == 1 {
		c.Title = DeriveTitle(content)
	}
	return msg
}

// SetTitle sets the title explicitly. An empty title restores DefaultTitle.
func (c *Conversation) SetTitle(title string, now time.Time) {
	if title == "" {
		title = DefaultTitle
	}
	c.Title = title
	c.Touch(now)
}

// SetSettings replaces the settings used for the next model session.
func (c *Conversation) SetSettings(settings Settings, now time.Time) {
	c.Settings = settings
	c.Touch(now)
}

// Touch records a mutation at now.
func (c *Conversation) Touch(now time.Time) {
	c.TouchedAt = now
}

// =============================================================================
// QUERIES
// =============================================================================

// UserMessageCount returns the number of user messages.
func (c *Conversation) UserMessageCount() int {
	n := 0
	for _, msg := range c.Messages {
		if msg.Role == RoleUser {
			n++
		}
	}
	return n
}

// LastMessage returns the most recent message.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// Age returns how long ago the conversation was last touched.
func (c *Conversation) Age(now time.Time) time.Duration {
	return now.Sub(c.TouchedAt)
}

// EstimateTokens estimates the token count of the whole history.
func (c *Conversation) EstimateTokens() int {
	total := 0
	for _, msg := range c.Messages {
		// ~4 tokens of per-message framing
		total += msg.EstimateTokens() + 4
	}
	return total
}

// Clone creates a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.Messages = make([]Message, len(c.Messages))
	copy(clone.Messages, c.Messages)
	return &clone
}
