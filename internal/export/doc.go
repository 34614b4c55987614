// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders conversations for use outside sidechat.
//
// Markdown is the canonical format: the same bytes are written to files and
// copied to the clipboard. JSON is available for files whose name ends in
// ".json".
//
// # Usage
//
//	data := export.Markdown(conv)
//	err := export.WriteFile("trip.md", conv)
//	err = export.CopyToClipboard(conv)
package export
