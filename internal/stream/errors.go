// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"fmt"
)

// ErrStreamFailed marks a reply that broke off before completing.
var ErrStreamFailed = errors.New("stream failed")

// Error describes a failed stream. Partial text is never returned.
type Error struct {
	Handle   string // session handle id
	Received int    // bytes received before the failure
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("stream %s failed after %d bytes: %v", e.Handle, e.Received, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports ErrStreamFailed for every stream error.
func (e *Error) Is(target error) bool {
	return target == ErrStreamFailed
}
