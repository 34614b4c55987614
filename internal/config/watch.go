// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// watchDebounce coalesces the bursts of events editors produce on save.
const watchDebounce = 200 * time.Millisecond

// Watch reloads path whenever it changes and passes the valid result to
// onChange. Invalid files are logged and ignored. The directory is watched
// rather than the file so that editors replacing the file are seen. Watch
// blocks until ctx ends.
func Watch(ctx context.Context, path string, onChange func(*Config), log *zerolog.Logger) error {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	l := log.With().Str("component", "config").Str("path", path).Logger()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	name := filepath.Clean(path)

	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(watchDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.Warn().Err(err).Msg("config watcher error")

		case <-timer.C:
			cfg, err := LoadFromPath(path)
			if err != nil {
				l.Warn().Err(err).Msg("config reload failed, keeping previous configuration")
				continue
			}
			l.Info().Msg("config reloaded")
			onChange(cfg)
		}
	}
}
