// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// startPollInterval is how often a freshly started server is polled.
const startPollInterval = 500 * time.Millisecond

// Start launches "ollama serve" in the background and waits until the API
// answers or the platform start timeout passes.
func (c *Client) Start(ctx context.Context) error {
	path, err := findOllamaExecutable()
	if err != nil {
		return &ClientError{Type: ErrTypeNotRunning, Message: "failed to find Ollama executable", Cause: err}
	}

	cmd := exec.Command(path, "serve")
	// GPU related variables such as OLLAMA_VULKAN must reach the server
	cmd.Env = os.Environ()
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return &ClientError{Type: ErrTypeNotRunning, Message: fmt.Sprintf("failed to start Ollama (path: %s)", path), Cause: err}
	}
	if cmd.Process != nil {
		// Keep running after we exit
		_ = cmd.Process.Release()
	}

	c.config.Logger.Info().Str("path", path).Msg("started ollama serve")
	return c.waitReady(ctx, path, startTimeout)
}

// waitReady polls CheckRunning until it succeeds, timeout passes or ctx ends.
func (c *Client) waitReady(ctx context.Context, path string, timeout time.Duration) error {
	start := time.Now()
	deadline := start.Add(timeout)
	ticker := time.NewTicker(startPollInterval)
	defer ticker.Stop()

	var lastErr error
	for time.Now().Before(deadline) {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		lastErr = c.CheckRunning(checkCtx)
		cancel()
		if lastErr == nil {
			c.config.Logger.Info().Dur("elapsed", time.Since(start)).Msg("ollama ready")
			return nil
		}

		select {
		case <-ctx.Done():
			return &ClientError{Type: ErrTypeNotRunning, Message: "Ollama startup cancelled", Cause: ctx.Err()}
		case <-ticker.C:
		}
	}

	return &ClientError{
		Type:    ErrTypeNotRunning,
		Message: fmt.Sprintf("Ollama started but not responding after %s (path: %s)", timeout, path),
		Cause:   lastErr,
	}
}
