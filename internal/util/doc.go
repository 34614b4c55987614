// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the sidechat packages.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file replacement (temp file, fsync, rename)
//   - TruncateRunes: UTF-8 safe truncation with an ellipsis marker
//   - RuneLen: character count of a string
//
// # Usage
//
//	// Replace a stored value without ever leaving a half-written file
//	err := util.AtomicWriteFile(path, data, 0600)
//
//	// Shorten a title for display
//	title := util.TruncateRunes(text, 50)
package util
