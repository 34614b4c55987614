// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jeranaias/sidechat/internal/model"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validBackends = map[string]bool{"file": true, "sqlite": true, "redis": true, "memory": true}
	validLevels   = map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "disabled": true}
	validFormats  = map[string]bool{"json": true, "console": true}
	validThemes   = map[string]bool{"auto": true, "dark": true, "light": true}
)

// Validate checks every section and returns ValidateErrors listing all
// problems, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Model
	if u, err := url.Parse(c.Model.OllamaURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("model.ollama_url", "invalid URL '%s', must be http(s)://host:port", c.Model.OllamaURL)
	}
	if strings.TrimSpace(c.Model.Model) == "" {
		add("model.model", "must not be empty")
	}
	if c.Model.ContextWindow < 256 || c.Model.ContextWindow > 1<<20 {
		add("model.context_window", "must be between 256 and 1048576, got %d", c.Model.ContextWindow)
	}
	if c.Model.TimeoutSecs < 1 || c.Model.TimeoutSecs > 3600 {
		add("model.timeout", "must be between 1 and 3600 seconds, got %d", c.Model.TimeoutSecs)
	}

	// Defaults
	if err := c.DefaultSettings().Validate(); err != nil {
		field := "defaults.temperature"
		if c.Defaults.TopK < model.MinTopK || c.Defaults.TopK > model.MaxTopK {
			field = "defaults.top_k"
		}
		add(field, "%v", err)
	}

	// Storage
	if !validBackends[c.Storage.Backend] {
		add("storage.backend", "invalid backend '%s', must be one of: file, sqlite, redis, memory", c.Storage.Backend)
	}
	if c.Storage.Capacity < 1 {
		add("storage.capacity", "must be at least 1, got %d", c.Storage.Capacity)
	}
	if c.Storage.QuotaBytes < 0 {
		add("storage.quota_bytes", "must not be negative")
	}
	if c.Storage.Backend == "redis" && c.Storage.RedisAddr == "" {
		add("storage.redis_addr", "required for the redis backend")
	}

	// Logging
	if !validLevels[c.Logging.Level] {
		add("logging.level", "invalid level '%s', must be one of: debug, info, warn, error, disabled", c.Logging.Level)
	}
	if !validFormats[c.Logging.Format] {
		add("logging.format", "invalid format '%s', must be json or console", c.Logging.Format)
	}

	// UI
	if !validThemes[c.UI.Theme] {
		add("ui.theme", "invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
