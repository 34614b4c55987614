// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for sidechat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, validation and hot reload.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (SIDECHAT_*)
//   - ~/.sidechat/config.toml
//   - ~/.sidechat/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Reload on change:
//
//	go config.Watch(ctx, path, func(cfg *config.Config) {
//	    svc.ApplyConfig(cfg.DefaultSettings(), cfg.Model.SystemPrompt)
//	}, &logger)
package config
