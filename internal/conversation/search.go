// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/jeranaias/sidechat/internal/model"
)

// Search returns copies of the conversations whose title or any message
// content contains query, compared with Unicode case folding. An empty query
// matches everything. Collection order is kept.
func (r *Repository) Search(query string) []*model.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if query == "" {
		return cloneAll(r.convs)
	}

	// Casers keep state; one per call.
	fold := cases.Fold()
	needle := fold.String(query)

	var out []*model.Conversation
	for _, c := range r.convs {
		if matches(c, needle, fold) {
			out = append(out, c.Clone())
		}
	}
	return out
}

func matches(c *model.Conversation, needle string, fold cases.Caser) bool {
	if strings.Contains(fold.String(c.Title), needle) {
		return true
	}
	for _, msg := range c.Messages {
		if strings.Contains(fold.String(msg.Content), needle) {
			return true
		}
	}
	return false
}
