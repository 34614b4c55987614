// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/jeranaias/sidechat/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry in a conversation. Assistant messages always hold
// the complete response; partial stream output never becomes a Message.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message stamped with now.
func NewMessage(role Role, content string, now time.Time) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
	}
}

// Preview returns the content truncated to maxLen characters.
func (m Message) Preview(maxLen int) string {
	return util.TruncateRunes(m.Content, maxLen)
}

// EstimateTokens gives a rough estimate of the token count (~4 chars per token).
func (m Message) EstimateTokens() int {
	return (len(m.Content) + 3) / 4
}
