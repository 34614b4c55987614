// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package host

import "fmt"

// VersionError reports an adapter built against another contract version.
type VersionError struct {
	Got  int
	Want int
}

// Error implements the error interface.
func (e *VersionError) Error() string {
	return fmt.Sprintf("host contract version %d, want %d", e.Got, e.Want)
}

// Is lets a version mismatch read as an unavailable capability.
func (e *VersionError) Is(target error) bool {
	return target == ErrUnavailable
}
