// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/sidechat/internal/host"
)

// =============================================================================
// HANDLE
// =============================================================================

// Handle is one model session. In chat mode the session state is the message
// history sent with every request; in generate mode it is the context tokens
// the server returned last. State only advances when a reply completes.
type Handle struct {
	id     string
	cfg    host.Config
	client *Client
	api    APIMode
	opts   *Options
	log    zerolog.Logger

	mu        sync.Mutex
	history   []ChatMessage
	tokens    []int
	usage     int
	destroyed bool
	active    *snapshots
}

var _ host.Handle = (*Handle)(nil)

func newHandle(id string, cfg host.Config, client *Client, api APIMode, opts *Options, log zerolog.Logger) *Handle {
	h := &Handle{
		id:     id,
		cfg:    cfg,
		client: client,
		api:    api,
		opts:   opts,
		log:    log.With().Str("handle", id).Logger(),
	}
	if api == APIChat && cfg.InitialContext != "" {
		h.history = []ChatMessage{{Role: "system", Content: cfg.InitialContext}}
	}
	h.usage = estimateTokens(cfg.InitialContext)
	return h
}

// ID returns the handle identifier.
func (h *Handle) ID() string { return h.id }

// Config returns the parameters the handle was created with.
func (h *Handle) Config() host.Config { return h.cfg }

// PromptStreaming starts a streamed reply to text. A stream still open on
// this handle is cancelled first.
func (h *Handle) PromptStreaming(ctx context.Context, text string) (host.Snapshots, error) {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return nil, host.ErrDestroyed
	}
	if h.active != nil {
		h.active.cancel()
	}
	body := h.requestLocked(text, true)
	h.mu.Unlock()

	streamCtx, cancel := context.WithCancel(ctx)
	rc, err := h.client.Stream(streamCtx, h.api.path(), body)
	if err != nil {
		cancel()
		if h.isDestroyed() {
			return nil, host.ErrDestroyed
		}
		return nil, err
	}

	s := &snapshots{
		h:      h,
		prompt: text,
		body:   rc,
		dec:    json.NewDecoder(rc),
		cancel: cancel,
	}

	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		s.finish()
		return nil, host.ErrDestroyed
	}
	h.active = s
	h.mu.Unlock()
	return s, nil
}

// Prompt sends text and waits for the whole reply.
func (h *Handle) Prompt(ctx context.Context, text string) (string, error) {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return "", host.ErrDestroyed
	}
	body := h.requestLocked(text, false)
	h.mu.Unlock()

	chunk, err := h.client.Post(ctx, h.api.path(), body)
	if err != nil {
		if h.isDestroyed() {
			return "", host.ErrDestroyed
		}
		return "", err
	}
	reply := chunk.Text()
	if !h.commit(text, reply, chunk) {
		return "", host.ErrDestroyed
	}
	return reply, nil
}

// MeasureInputUsage estimates the tokens text would add to the session.
func (h *Handle) MeasureInputUsage(_ context.Context, text string) (int, error) {
	if h.isDestroyed() {
		return 0, host.ErrDestroyed
	}
	return estimateTokens(text), nil
}

// InputQuota returns num_ctx.
func (h *Handle) InputQuota() int {
	return h.opts.NumCtx
}

// InputUsage returns the tokens the session holds, as reported by the server
// for the last completed reply.
func (h *Handle) InputUsage() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.usage
}

// Destroy drops the session state and ends any open stream. Idempotent.
func (h *Handle) Destroy() error {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return nil
	}
	h.destroyed = true
	active := h.active
	h.active = nil
	h.history = nil
	h.tokens = nil
	h.mu.Unlock()

	if active != nil {
		active.cancel()
	}
	h.log.Debug().Msg("handle destroyed")
	return nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (h *Handle) isDestroyed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroyed
}

// requestLocked builds the request body for text. Caller holds h.mu.
func (h *Handle) requestLocked(text string, stream bool) any {
	if h.api == APIGenerate {
		return GenerateRequest{
			Model:   h.client.config.Model,
			Prompt:  text,
			System:  h.cfg.InitialContext,
			Context: h.tokens,
			Stream:  stream,
			Options: h.opts,
		}
	}
	msgs := make([]ChatMessage, len(h.history), len(h.history)+1)
	copy(msgs, h.history)
	msgs = append(msgs, ChatMessage{Role: "user", Content: text})
	return ChatRequest{
		Model:    h.client.config.Model,
		Messages: msgs,
		Stream:   stream,
		Options:  h.opts,
	}
}

// commit records a completed exchange. It reports false when the handle was
// destroyed meanwhile.
func (h *Handle) commit(prompt, reply string, final Chunk) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return false
	}

	if h.api == APIGenerate {
		h.tokens = final.Context
	} else {
		h.history = append(h.history,
			ChatMessage{Role: "user", Content: prompt},
			ChatMessage{Role: "assistant", Content: reply},
		)
	}

	if n := final.PromptEvalCount + final.EvalCount; n > 0 {
		h.usage = n
	} else {
		h.usage += estimateTokens(prompt) + estimateTokens(reply)
	}
	return true
}

func (h *Handle) release(s *snapshots) {
	h.mu.Lock()
	if h.active == s {
		h.active = nil
	}
	h.mu.Unlock()
}

// Rough estimate of ~4 characters per token.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
