// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama adapts a local Ollama server to the host capability contract.
//
// Probe checks the server once, optionally starting it, and picks the API
// surface every handle will use: /api/chat with a replayed message history,
// or the legacy /api/generate with opaque context tokens on servers that
// predate the chat endpoint. Ollama streams deltas; handles convert them into
// the cumulative snapshots the host contract specifies.
//
// # Key Types
//
//   - Client: HTTP client for the Ollama API
//   - Capability: host.Capability backed by a Client
//   - Handle: one model session (history or context tokens plus options)
//   - ClientError: typed error with IsX helpers
//
// # Usage
//
//	capability := ollama.NewCapability(ollama.DefaultConfig())
//	if err := capability.Probe(ctx); err != nil {
//	    // errors.Is(err, host.ErrUnavailable)
//	}
//	h, err := capability.Create(ctx, host.Config{Temperature: 0.7, TopK: 40})
//	snaps, err := h.PromptStreaming(ctx, "Hello")
//
// # Security
//
// Ollama listens on loopback over plain HTTP; no credentials are sent.
package ollama
