// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/jeranaias/sidechat/internal/model"
)

// JSONExporter writes the conversation exactly as it is persisted, so the
// file can be inspected or re-imported.
type JSONExporter struct{}

// Export implements Exporter.
func (JSONExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, errNilConversation
	}
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// FileExtension returns ".json".
func (JSONExporter) FileExtension() string { return ".json" }

// MimeType returns the MIME type for JSON.
func (JSONExporter) MimeType() string { return "application/json" }
