// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/sidechat/internal/host"
	"github.com/jeranaias/sidechat/internal/metrics"
	"github.com/jeranaias/sidechat/internal/model"
)

// =============================================================================
// STATE
// =============================================================================

// State is the coordinator lifecycle state.
type State int

const (
	NoSession State = iota
	Live
)

// String returns the state name.
func (s State) String() string {
	if s == Live {
		return "live"
	}
	return "none"
}

// Config holds configuration for the coordinator.
type Config struct {
	// InitialContext primes every new session (e.g. a system prompt)
	InitialContext string

	// CreateTimeout bounds a single session creation (default: 60 seconds)
	CreateTimeout time.Duration

	// Logger receives lifecycle events (default: no-op)
	Logger *zerolog.Logger
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		CreateTimeout: 60 * time.Second,
	}
}

// Stats counts lifecycle events.
type Stats struct {
	Creates  int
	Destroys int
	Failures int
}

// Usage is the context window consumption of the live session.
type Usage struct {
	Used  int
	Quota int
}

// Percent returns Used as a percentage of Quota.
func (u Usage) Percent() float64 {
	if u.Quota <= 0 {
		return 0
	}
	return float64(u.Used) / float64(u.Quota) * 100
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator owns at most one live model session.
type Coordinator struct {
	mu sync.Mutex

	capability host.Capability

	// Live binding; handle is nil in NoSession
	handle   host.Handle
	convID   string
	settings model.Settings

	initialContext string
	createTimeout  time.Duration
	stats          Stats
	log            *zerolog.Logger
}

// NewCoordinator creates a coordinator in the NoSession state.
func NewCoordinator(capability host.Capability, cfg Config) *Coordinator {
	log := cfg.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	l := log.With().Str("component", "session").Logger()

	return &Coordinator{
		capability:     capability,
		initialContext: cfg.InitialContext,
		createTimeout:  cfg.CreateTimeout,
		log:            &l,
	}
}

// Probe checks that the capability can create sessions at all.
func (c *Coordinator) Probe(ctx context.Context) error {
	if err := host.CheckVersion(c.capability); err != nil {
		return err
	}
	return c.capability.Probe(ctx)
}

// Ensure returns a live handle bound to conv and its current settings. It is
// a no-op when such a handle already exists; otherwise any live handle is
// destroyed first and a new one is created.
func (c *Coordinator) Ensure(ctx context.Context, conv *model.Conversation) (host.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle != nil && c.convID == conv.ID && c.settings.Equal(conv.Settings) {
		return c.handle, nil
	}
	c.teardownLocked("rebind")

	if c.createTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.createTimeout)
		defer cancel()
	}

	h, err := c.capability.Create(ctx, host.Config{
		Temperature:    conv.Settings.Temperature,
		TopK:           conv.Settings.TopK,
		InitialContext: c.initialContext,
	})
	if err != nil {
		c.stats.Failures++
		metrics.IncSession(metrics.SessionFailed)

		kind := KindCreateFailed
		if errors.Is(err, host.ErrUnavailable) {
			kind = KindUnavailable
		}
		c.log.Warn().Err(err).Str("conversation", conv.ID).Str("kind", kind.String()).Msg("session creation failed")
		return nil, &Error{Kind: kind, ConversationID: conv.ID, Err: err}
	}

	c.handle = h
	c.convID = conv.ID
	c.settings = conv.Settings
	c.stats.Creates++
	metrics.IncSession(metrics.SessionCreated)

	c.log.Info().
		Str("handle", h.ID()).
		Str("conversation", conv.ID).
		Float64("temperature", conv.Settings.Temperature).
		Int("top_k", conv.Settings.TopK).
		Msg("session created")
	return h, nil
}

// Teardown destroys the live session, if any.
func (c *Coordinator) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked("teardown")
}

// Invalidate destroys the live session only when it is bound to convID.
func (c *Coordinator) Invalidate(convID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == nil || c.convID != convID {
		return false
	}
	c.teardownLocked("invalidate")
	return true
}

// SetInitialContext changes the context used for new sessions. A change
// destroys the live session since it was bound to the old context.
func (c *Coordinator) SetInitialContext(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if text == c.initialContext {
		return
	}
	c.initialContext = text
	c.teardownLocked("initial context changed")
}

// InitialContext returns the context used for new sessions.
func (c *Coordinator) InitialContext() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialContext
}

// =============================================================================
// QUERIES
// =============================================================================

// Handle returns the live handle.
func (c *Coordinator) Handle() (host.Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle, c.handle != nil
}

// BoundTo returns the conversation id of the live session.
func (c *Coordinator) BoundTo() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.convID, c.handle != nil
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil {
		return Live
	}
	return NoSession
}

// Usage returns the context window usage of the live session.
func (c *Coordinator) Usage() (Usage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == nil {
		return Usage{}, false
	}
	return Usage{Used: c.handle.InputUsage(), Quota: c.handle.InputQuota()}, true
}

// Stats returns lifecycle counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Coordinator) teardownLocked(reason string) {
	if c.handle == nil {
		return
	}

	id := c.handle.ID()
	if err := c.handle.Destroy(); err != nil {
		// The handle is unusable either way; forget it.
		c.log.Warn().Err(err).Str("handle", id).Msg("session destroy failed")
	}
	c.stats.Destroys++
	metrics.IncSession(metrics.SessionDestroyed)
	c.log.Debug().Str("handle", id).Str("conversation", c.convID).Str("reason", reason).Msg("session destroyed")

	c.handle = nil
	c.convID = ""
	c.settings = model.Settings{}
}
