// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ChatMessage is one entry of a /api/chat history.
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Options are the sampling parameters a handle is bound to.
type Options struct {
	Temperature float64 `json:"temperature"`
	TopK        int     `json:"top_k"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

// ChatRequest is the request body for the /api/chat endpoint.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *Options      `json:"options,omitempty"`
}

// GenerateRequest is the request body for the legacy /api/generate endpoint.
// Context carries the tokens returned by the previous response.
type GenerateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	System  string   `json:"system,omitempty"`
	Context []int    `json:"context,omitempty"`
	Stream  bool     `json:"stream"`
	Options *Options `json:"options,omitempty"`
}

// ShowRequest is the request body for /api/show.
type ShowRequest struct {
	Model string `json:"model"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// VersionResponse is returned by /api/version.
type VersionResponse struct {
	Version string `json:"version"`
}

// Chunk is one line of a streaming response from either endpoint. Content
// arrives in Message.Content (/api/chat) or Response (/api/generate) and is
// always a delta.
type Chunk struct {
	Model    string      `json:"model"`
	Message  ChatMessage `json:"message"`
	Response string      `json:"response"`
	Done     bool        `json:"done"`
	Context  []int       `json:"context,omitempty"`

	// Statistics, populated on the final chunk
	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`

	// Error is set when the server aborts the stream
	Error string `json:"error,omitempty"`
}

// Text returns the delta carried by the chunk.
func (c Chunk) Text() string {
	if c.Message.Content != "" {
		return c.Message.Content
	}
	return c.Response
}

// OllamaError is the error body returned with non-2xx statuses.
type OllamaError struct {
	Error string `json:"error"`
}
