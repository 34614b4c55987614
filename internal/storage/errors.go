// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrNotFound is returned by backends for keys that were never written.
	ErrNotFound = errors.New("key not found")

	// ErrQuotaExceeded is returned by backends when a write would exceed
	// their storage capacity.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrPersistence marks a save that failed even after shrinking.
	ErrPersistence = errors.New("persistence failed")

	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// Error describes a failed store operation.
type Error struct {
	Op  string // "save", "clear"
	Key string
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports ErrPersistence for every store failure.
func (e *Error) Is(target error) bool {
	return target == ErrPersistence
}

// IsQuotaExceeded reports whether err stems from a capacity failure.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
