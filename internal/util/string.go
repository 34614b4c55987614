// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the sidechat packages.
package util

// Ellipsis is appended by TruncateRunes when it shortens a string.
const Ellipsis = "..."

// TruncateRunes shortens s to at most maxRunes characters. When it has to
// cut, the result ends in Ellipsis and still fits in maxRunes.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= len(Ellipsis) {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-len(Ellipsis)]) + Ellipsis
}

// RuneLen returns the number of characters in s.
func RuneLen(s string) int {
	return len([]rune(s))
}
