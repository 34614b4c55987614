// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/sidechat/internal/config"
)

// New creates a logger configured from cfg. Levels are "debug" | "info" |
// "warn" | "error" | "disabled"; formats are "json" | "console". A File of
// "-" logs to stderr. The returned closer releases the log file.
func New(cfg config.LoggingConfig) (*zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	out, closer, err := open(cfg.File)
	if err != nil {
		return nil, nil, err
	}

	var base zerolog.Logger
	if strings.EqualFold(cfg.Format, "console") {
		w := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: out != os.Stderr}
		base = zerolog.New(w)
	} else {
		base = zerolog.New(out)
	}
	base = base.Level(level).With().Timestamp().Logger()
	return &base, closer, nil
}

// Nop returns a logger that discards everything.
func Nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func open(path string) (io.Writer, io.Closer, error) {
	if path == "" || path == "-" {
		return os.Stderr, nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
