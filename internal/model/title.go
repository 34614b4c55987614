// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"unicode"

	"github.com/jeranaias/sidechat/internal/util"
)

// DefaultTitle is the title of a conversation until one is derived or set.
const DefaultTitle = "New Chat"

// MaxTitleLength is the longest derived title, ellipsis included.
const MaxTitleLength = 50

// DeriveTitle builds a conversation title from the first user message.
//
// The trimmed text is cut after the first sentence terminator that is
// followed by whitespace and shortened to MaxTitleLength characters. Inner
// whitespace is kept as written. An empty result yields DefaultTitle.
func DeriveTitle(text string) string {
	title := firstSentence(strings.TrimSpace(text))
	if title == "" {
		return DefaultTitle
	}
	return util.TruncateRunes(title, MaxTitleLength)
}

// firstSentence returns text up to and including the first '.', '!' or '?'
// that is followed by whitespace, or text unchanged when there is none.
func firstSentence(text string) string {
	runes := []rune(text)
	for i := 0; i+1 < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if unicode.IsSpace(runes[i+1]) {
				return string(runes[:i+1])
			}
		}
	}
	return text
}
