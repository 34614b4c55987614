// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/jeranaias/sidechat/internal/model"
	"github.com/jeranaias/sidechat/internal/util"
)

var errNilConversation = errors.New("conversation is nil")

// clipboardWrite is replaced in tests.
var clipboardWrite = clipboard.WriteAll

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export converts a conversation to the target format and returns the content.
	Export(conv *model.Conversation) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// ForPath picks the exporter matching the extension of path. Anything that
// is not ".json" gets Markdown.
func ForPath(path string) Exporter {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSONExporter{}
	}
	return MarkdownExporter{}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// WriteFile atomically writes conv to path in the format chosen by ForPath.
func WriteFile(path string, conv *model.Conversation) error {
	data, err := ForPath(path).Export(conv)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// CopyToClipboard places the Markdown rendering of conv on the clipboard.
func CopyToClipboard(conv *model.Conversation) error {
	if conv == nil {
		return errNilConversation
	}
	if err := clipboardWrite(string(Markdown(conv))); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}

// DefaultFilename suggests a file name for conv with the given extension.
func DefaultFilename(conv *model.Conversation, ext string) string {
	return sanitizeFilename(conv.Title) + "_" + conv.CreatedAt.Format("20060102_150405") + ext
}

// sanitizeFilename replaces characters that are invalid in filenames on
// Windows or Unix.
func sanitizeFilename(s string) string {
	s = util.TruncateRunes(s, 50)

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}

	if b.Len() == 0 {
		return "conversation"
	}
	return b.String()
}
