// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hosttest provides an in-memory host.Capability for tests.
package hosttest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jeranaias/sidechat/internal/host"
)

// Reply scripts one streamed response.
type Reply struct {
	// Snapshots are returned in order, then io.EOF (or Err).
	Snapshots []string

	// Err, when set, is returned after the snapshots instead of io.EOF.
	Err error

	// Gate, when set, must yield a value before each snapshot is returned.
	Gate <-chan struct{}
}

// Responder produces the reply for a prompt.
type Responder func(cfg host.Config, prompt string) Reply

// Echo replies "echo: <prompt>" one word per snapshot.
func Echo(_ host.Config, prompt string) Reply {
	words := strings.Fields("echo: " + prompt)
	snaps := make([]string, 0, len(words))
	for i := range words {
		snaps = append(snaps, strings.Join(words[:i+1], " "))
	}
	return Reply{Snapshots: snaps}
}

// Fixed always replies with the given snapshots.
func Fixed(snapshots ...string) Responder {
	return func(host.Config, string) Reply {
		return Reply{Snapshots: snapshots}
	}
}

// =============================================================================
// CAPABILITY
// =============================================================================

// Capability is a scriptable host.Capability that records every handle.
type Capability struct {
	mu sync.Mutex

	ProbeErr  error
	CreateErr error
	Respond   Responder
	Quota     int

	// OnCreate, when set, runs at the start of every Create
	OnCreate func(host.Config)

	handles  []*Handle
	creates  int
	destroys int
}

// New returns a capability that echoes prompts.
func New() *Capability {
	return &Capability{Respond: Echo, Quota: 4096}
}

// ContractVersion implements host.Versioned.
func (c *Capability) ContractVersion() int { return host.ContractVersion }

// Probe implements host.Capability.
func (c *Capability) Probe(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ProbeErr
}

// Create implements host.Capability.
func (c *Capability) Create(ctx context.Context, cfg host.Config) (host.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	hook := c.OnCreate
	c.mu.Unlock()
	if hook != nil {
		hook(cfg)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.CreateErr != nil {
		return nil, c.CreateErr
	}
	c.creates++
	h := &Handle{
		id:    fmt.Sprintf("fake-%d", c.creates),
		cfg:   cfg,
		owner: c,
	}
	c.handles = append(c.handles, h)
	return h, nil
}

// SetResponder swaps the responder used by new prompts.
func (c *Capability) SetResponder(r Responder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Respond = r
}

// SetCreateErr makes subsequent Create calls fail with err.
func (c *Capability) SetCreateErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CreateErr = err
}

// Creates returns the number of handles created.
func (c *Capability) Creates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creates
}

// Destroys returns the number of handles destroyed.
func (c *Capability) Destroys() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroys
}

// Live returns the number of created handles not yet destroyed.
func (c *Capability) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creates - c.destroys
}

// Handles returns every handle created so far.
func (c *Capability) Handles() []*Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Handle, len(c.handles))
	copy(out, c.handles)
	return out
}

// Last returns the most recently created handle.
func (c *Capability) Last() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.handles) == 0 {
		return nil
	}
	return c.handles[len(c.handles)-1]
}

func (c *Capability) responder() Responder {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Respond == nil {
		return Echo
	}
	return c.Respond
}

// =============================================================================
// HANDLE
// =============================================================================

// Handle is a fake model session.
type Handle struct {
	id    string
	cfg   host.Config
	owner *Capability

	mu        sync.Mutex
	destroyed bool
	prompts   []string
	usage     int
	done      chan struct{}
}

var _ host.Handle = (*Handle)(nil)

// ID implements host.Handle.
func (h *Handle) ID() string { return h.id }

// Config implements host.Handle.
func (h *Handle) Config() host.Config { return h.cfg }

// Prompts returns the prompts sent to this handle.
func (h *Handle) Prompts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.prompts))
	copy(out, h.prompts)
	return out
}

// Destroyed reports whether Destroy was called.
func (h *Handle) Destroyed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroyed
}

// PromptStreaming implements host.Handle.
func (h *Handle) PromptStreaming(ctx context.Context, text string) (host.Snapshots, error) {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return nil, host.ErrDestroyed
	}
	h.prompts = append(h.prompts, text)
	if h.done == nil {
		h.done = make(chan struct{})
	}
	done := h.done
	h.mu.Unlock()

	reply := h.owner.responder()(h.cfg, text)
	return &snapshots{handle: h, reply: reply, done: done}, nil
}

// Prompt implements host.Handle.
func (h *Handle) Prompt(ctx context.Context, text string) (string, error) {
	snaps, err := h.PromptStreaming(ctx, text)
	if err != nil {
		return "", err
	}
	defer snaps.Close()

	last := ""
	for {
		s, err := snaps.Next(ctx)
		if err == io.EOF {
			return last, nil
		}
		if err != nil {
			return "", err
		}
		last = s
	}
}

// MeasureInputUsage implements host.Handle.
func (h *Handle) MeasureInputUsage(_ context.Context, text string) (int, error) {
	return (len(text) + 3) / 4, nil
}

// InputQuota implements host.Handle.
func (h *Handle) InputQuota() int { return h.owner.Quota }

// InputUsage implements host.Handle.
func (h *Handle) InputUsage() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.usage
}

// Destroy implements host.Handle.
func (h *Handle) Destroy() error {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return nil
	}
	h.destroyed = true
	if h.done != nil {
		close(h.done)
	}
	h.mu.Unlock()

	h.owner.mu.Lock()
	h.owner.destroys++
	h.owner.mu.Unlock()
	return nil
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

type snapshots struct {
	handle *Handle
	reply  Reply
	done   <-chan struct{}
	pos    int
	closed bool
}

func (s *snapshots) Next(ctx context.Context) (string, error) {
	if s.closed {
		return "", io.EOF
	}
	if s.handle.Destroyed() {
		return "", host.ErrDestroyed
	}

	if s.pos >= len(s.reply.Snapshots) {
		if s.reply.Err != nil {
			return "", s.reply.Err
		}
		s.finish()
		return "", io.EOF
	}

	if s.reply.Gate != nil {
		select {
		case <-s.reply.Gate:
		case <-s.done:
			return "", host.ErrDestroyed
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	snap := s.reply.Snapshots[s.pos]
	s.pos++
	return snap, nil
}

func (s *snapshots) Close() error {
	s.closed = true
	return nil
}

func (s *snapshots) finish() {
	if len(s.reply.Snapshots) == 0 {
		return
	}
	final := s.reply.Snapshots[len(s.reply.Snapshots)-1]
	s.handle.mu.Lock()
	s.handle.usage += (len(final) + 3) / 4
	s.handle.mu.Unlock()
}
