// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !unix && !windows

package storage

// Disk-full is only detected on unix and windows; the byte quota still
// applies everywhere.
func isNoSpace(error) bool {
	return false
}
