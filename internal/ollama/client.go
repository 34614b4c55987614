// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config holds configuration options for the Ollama client.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	// Note: Uses explicit IPv4 address instead of localhost to avoid IPv6 resolution issues on Windows
	BaseURL string

	// Model is the model every handle talks to (default: "llama3.2")
	Model string

	// Timeout for non-streaming requests (default: 60s)
	Timeout time.Duration

	// ContextWindow is num_ctx and the handle input quota (default: 4096)
	ContextWindow int

	// AutoStart runs "ollama serve" when the server is not reachable
	AutoStart bool

	// Logger receives probe and stream diagnostics (default: no-op)
	Logger *zerolog.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "http://127.0.0.1:11434",
		Model:         "llama3.2",
		Timeout:       60 * time.Second,
		ContextWindow: 4096,
	}
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.ContextWindow <= 0 {
		c.ContextWindow = def.ContextWindow
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Ollama API.
//
// The Client is safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client

	// SECURITY: TLS not required - Ollama runs locally on 127.0.0.1 over HTTP
	// Streams have no client timeout; they end with their context.
	streamClient *http.Client
}

// NewClient creates a client. Zero fields of cfg take their defaults.
func NewClient(cfg Config) *Client {
	cfg.fillDefaults()
	return &Client{
		config:       cfg,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		streamClient: &http.Client{},
	}
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}

// CheckRunning verifies that Ollama is reachable.
func (c *Client) CheckRunning(ctx context.Context) error {
	resp, err := c.do(ctx, c.httpClient, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	drainAndClose(resp.Body)
	return nil
}

// Version returns the server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, c.httpClient, http.MethodGet, "/api/version", nil)
	if err != nil {
		return "", err
	}
	defer drainAndClose(resp.Body)

	var v VersionResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode version", Cause: err}
	}
	return v.Version, nil
}

// ShowModel verifies that model is installed locally.
func (c *Client) ShowModel(ctx context.Context, model string) error {
	resp, err := c.do(ctx, c.httpClient, http.MethodPost, "/api/show", ShowRequest{Model: model})
	if err != nil {
		return err
	}
	drainAndClose(resp.Body)
	return nil
}

// LoadModel asks the server to load model into memory with the given options.
func (c *Client) LoadModel(ctx context.Context, model string, opts *Options) error {
	resp, err := c.do(ctx, c.httpClient, http.MethodPost, "/api/generate",
		GenerateRequest{Model: model, Stream: false, Options: opts})
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	var chunk Chunk
	if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode load response", Cause: err}
	}
	if chunk.Error != "" {
		return &ClientError{Type: ErrTypeServer, Message: chunk.Error}
	}
	return nil
}

// Post sends a non-streaming request and decodes the single response chunk.
func (c *Client) Post(ctx context.Context, path string, body any) (Chunk, error) {
	resp, err := c.do(ctx, c.httpClient, http.MethodPost, path, body)
	if err != nil {
		return Chunk{}, err
	}
	defer drainAndClose(resp.Body)

	var chunk Chunk
	if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
		return Chunk{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	if chunk.Error != "" {
		return Chunk{}, &ClientError{Type: ErrTypeServer, Message: chunk.Error}
	}
	return chunk, nil
}

// Stream sends a streaming request and returns the open response body of
// newline-delimited JSON chunks.
func (c *Client) Stream(ctx context.Context, path string, body any) (io.ReadCloser, error) {
	resp, err := c.do(ctx, c.streamClient, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// do performs a request and maps transport and status failures to
// ClientErrors. The caller owns the body of a successful response.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running", Cause: err}
	}

	if resp.StatusCode == http.StatusNotFound {
		drainAndClose(resp.Body)
		return nil, &ClientError{Type: ErrTypeModelNotFound, Message: "model not found: " + c.config.Model}
	}
	if resp.StatusCode != http.StatusOK {
		defer drainAndClose(resp.Body)
		var ollamaErr OllamaError
		if err := json.NewDecoder(resp.Body).Decode(&ollamaErr); err == nil && ollamaErr.Error != "" {
			return nil, &ClientError{Type: ErrTypeServer, Message: ollamaErr.Error}
		}
		return nil, &ClientError{Type: ErrTypeServer, Message: "request failed: " + resp.Status}
	}
	return resp, nil
}

// Helper to drain response body
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, r) //nolint:errcheck
	r.Close()
}
