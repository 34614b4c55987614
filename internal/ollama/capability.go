// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/jeranaias/sidechat/internal/host"
)

// =============================================================================
// API MODE
// =============================================================================

// APIMode selects the endpoint handles talk to.
type APIMode int

const (
	// APIChat uses /api/chat with a client-held message history.
	APIChat APIMode = iota
	// APIGenerate uses /api/generate with server-returned context tokens.
	APIGenerate
)

func (m APIMode) String() string {
	if m == APIGenerate {
		return "generate"
	}
	return "chat"
}

func (m APIMode) path() string {
	if m == APIGenerate {
		return "/api/generate"
	}
	return "/api/chat"
}

// chatSince is the first server release with /api/chat.
var chatSince = [3]int{0, 1, 14}

// apiForVersion picks the endpoint for a server version. Development builds
// report 0.0.0 and get chat, as do versions that do not parse.
func apiForVersion(version string) APIMode {
	v, ok := parseVersion(version)
	if !ok || v == [3]int{} {
		return APIChat
	}
	for i := range v {
		if v[i] != chatSince[i] {
			if v[i] < chatSince[i] {
				return APIGenerate
			}
			return APIChat
		}
	}
	return APIChat
}

func parseVersion(s string) ([3]int, bool) {
	var v [3]int
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if i := strings.IndexAny(s, "-+ "); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	if len(parts) == 0 || len(parts) > 3 {
		return v, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return v, false
		}
		v[i] = n
	}
	return v, true
}

// =============================================================================
// CAPABILITY
// =============================================================================

// Capability adapts a Client to host.Capability. A successful probe is
// cached; a failed one is retried on the next call.
type Capability struct {
	client *Client
	log    zerolog.Logger

	mu     sync.Mutex
	probed bool
	api    APIMode
}

var _ host.Capability = (*Capability)(nil)

// NewCapability wraps client.
func NewCapability(client *Client) *Capability {
	return &Capability{
		client: client,
		log:    client.config.Logger.With().Str("component", "ollama").Logger(),
	}
}

// ContractVersion implements host.Versioned.
func (c *Capability) ContractVersion() int {
	return host.ContractVersion
}

// API returns the endpoint selected by the last successful probe.
func (c *Capability) API() APIMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.api
}

// Probe checks that the server answers and the configured model is installed.
// With AutoStart set, a server that is not running is started first.
func (c *Capability) Probe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.probeLocked(ctx)
}

func (c *Capability) probeLocked(ctx context.Context) error {
	if c.probed {
		return nil
	}

	if err := c.client.CheckRunning(ctx); err != nil {
		if !IsNotRunning(err) || !c.client.config.AutoStart {
			return err
		}
		c.log.Info().Msg("ollama not running, starting it")
		if err := c.client.Start(ctx); err != nil {
			return err
		}
	}

	version, err := c.client.Version(ctx)
	if err != nil {
		// Servers that predate /api/version also predate /api/chat
		if !IsModelNotFound(err) {
			return err
		}
		version = "0.1.0"
	}
	if err := c.client.ShowModel(ctx, c.client.config.Model); err != nil {
		return err
	}

	c.api = apiForVersion(version)
	c.probed = true
	c.log.Info().
		Str("version", version).
		Str("model", c.client.config.Model).
		Stringer("api", c.api).
		Msg("model capability available")
	return nil
}

// Create loads the model with cfg's sampling options and returns a handle
// holding an empty conversation seeded with cfg.InitialContext.
func (c *Capability) Create(ctx context.Context, cfg host.Config) (host.Handle, error) {
	c.mu.Lock()
	err := c.probeLocked(ctx)
	api := c.api
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	opts := c.options(cfg)
	if err := c.client.LoadModel(ctx, c.client.config.Model, opts); err != nil {
		return nil, err
	}

	h := newHandle(ulid.Make().String(), cfg, c.client, api, opts, c.log)
	c.log.Debug().Str("handle", h.id).Stringer("api", api).Msg("handle created")
	return h, nil
}

func (c *Capability) options(cfg host.Config) *Options {
	return &Options{
		Temperature: cfg.Temperature,
		TopK:        cfg.TopK,
		NumCtx:      c.client.config.ContextWindow,
	}
}
