// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
)

// ErrCreateFailed matches every session creation failure.
var ErrCreateFailed = errors.New("session creation failed")

// Kind classifies a creation failure.
type Kind int

const (
	// KindCreateFailed is a transient or resource failure; the user may retry.
	KindCreateFailed Kind = iota

	// KindUnavailable means the capability itself is absent.
	KindUnavailable
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	default:
		return "create_failed"
	}
}

// Error describes a failed session creation.
type Error struct {
	Kind           Kind
	ConversationID string
	Err            error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("session for %s: %s: %v", e.ConversationID, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports ErrCreateFailed for every creation error.
func (e *Error) Is(target error) bool {
	return target == ErrCreateFailed
}
