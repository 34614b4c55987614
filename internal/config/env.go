// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"strconv"
)

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - SIDECHAT_MODEL: overrides model.model
//   - SIDECHAT_OLLAMA_URL: overrides model.ollama_url
//   - SIDECHAT_STORAGE: overrides storage.backend
//   - SIDECHAT_DATA_DIR: overrides storage.data_dir
//   - SIDECHAT_REDIS_ADDR: overrides storage.redis_addr
//   - SIDECHAT_LOG_LEVEL: overrides logging.level
//   - SIDECHAT_METRICS_ADDR: overrides metrics.addr
//   - SIDECHAT_CONTEXT_WINDOW: overrides model.context_window
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SIDECHAT_MODEL"); v != "" {
		c.Model.Model = v
	}
	if v := os.Getenv("SIDECHAT_OLLAMA_URL"); v != "" {
		c.Model.OllamaURL = v
	}
	if v := os.Getenv("SIDECHAT_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("SIDECHAT_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("SIDECHAT_REDIS_ADDR"); v != "" {
		c.Storage.RedisAddr = v
	}
	if v := os.Getenv("SIDECHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SIDECHAT_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("SIDECHAT_CONTEXT_WINDOW"); v != "" {
		// Ignore unparseable values rather than failing startup
		if n, err := strconv.Atoi(v); err == nil {
			c.Model.ContextWindow = n
		}
	}
}
