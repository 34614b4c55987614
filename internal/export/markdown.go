// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"time"

	"github.com/jeranaias/sidechat/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// Markdown renders conv as:
//
//	# <title>
//
//	_Created: <RFC3339>_
//
// followed by one "---" separated block per message headed by the role.
// The output depends only on conv.
func Markdown(conv *model.Conversation) []byte {
	var buf bytes.Buffer

	buf.WriteString("# ")
	buf.WriteString(conv.Title)
	buf.WriteString("\n\n_Created: ")
	buf.WriteString(conv.CreatedAt.Format(time.RFC3339))
	buf.WriteString("_\n")

	for _, msg := range conv.Messages {
		buf.WriteString("\n---\n\n### ")
		buf.WriteString(msg.Role.DisplayName())
		buf.WriteString("\n\n")
		buf.WriteString(msg.Content)
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

// MarkdownExporter exports conversations to Markdown format.
type MarkdownExporter struct{}

// Export implements Exporter.
func (MarkdownExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, errNilConversation
	}
	return Markdown(conv), nil
}

// FileExtension returns ".md".
func (MarkdownExporter) FileExtension() string { return ".md" }

// MimeType returns the MIME type for Markdown.
func (MarkdownExporter) MimeType() string { return "text/markdown" }
