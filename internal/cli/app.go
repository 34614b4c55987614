// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/jeranaias/sidechat/internal/chat"
	"github.com/jeranaias/sidechat/internal/config"
	"github.com/jeranaias/sidechat/internal/conversation"
	"github.com/jeranaias/sidechat/internal/host"
	"github.com/jeranaias/sidechat/internal/logging"
	"github.com/jeranaias/sidechat/internal/ollama"
	"github.com/jeranaias/sidechat/internal/session"
	"github.com/jeranaias/sidechat/internal/storage"
	"github.com/jeranaias/sidechat/internal/stream"
)

// =============================================================================
// APPLICATION STACK
// =============================================================================

// Deps overrides parts of the stack. Zero values select the real
// implementations.
type Deps struct {
	// Capability replaces the Ollama adapter
	Capability host.Capability

	// Logger replaces the configured logger
	Logger *zerolog.Logger

	// Notifier receives non-fatal failures (default: printed to Err)
	Notifier chat.Notifier

	// Input replaces the line editor of the REPL
	Input LineReader

	Out io.Writer
	Err io.Writer
}

// App is the wired component stack.
type App struct {
	Config     *config.Config
	ConfigPath string

	Log     *zerolog.Logger
	Store   *storage.Store
	Service *chat.Service
	Coord   *session.Coordinator

	Out io.Writer
	Err io.Writer

	logCloser io.Closer
}

// Build wires store, repository, coordinator, assembler and chat service
// from cfg. The model capability is not probed; call Service.Start for that.
func Build(ctx context.Context, cfg *config.Config, cfgPath string, deps Deps) (*App, error) {
	app := &App{
		Config:     cfg,
		ConfigPath: cfgPath,
		Out:        deps.Out,
		Err:        deps.Err,
	}
	if app.Out == nil {
		app.Out = os.Stdout
	}
	if app.Err == nil {
		app.Err = os.Stderr
	}

	app.Log = deps.Logger
	if app.Log == nil {
		log, closer, err := logging.New(cfg.Logging)
		if err != nil {
			return nil, err
		}
		app.Log, app.logCloser = log, closer
	}

	store, err := storage.Open(ctx, storage.Options{
		Backend:       cfg.Storage.Backend,
		DataDir:       cfg.Storage.DataDir,
		QuotaBytes:    cfg.Storage.QuotaBytes,
		SQLitePath:    cfg.Storage.SQLitePath,
		RedisAddr:     cfg.Storage.RedisAddr,
		RedisPassword: cfg.Storage.RedisPassword,
		RedisDB:       cfg.Storage.RedisDB,
		Namespace:     cfg.Storage.Namespace,
		Logger:        app.Log,
	})
	if err != nil {
		app.closeLog()
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	app.Store = store

	repo := conversation.Open(ctx, store, conversation.Config{
		Capacity: cfg.Storage.Capacity,
		Logger:   app.Log,
	})

	capability := deps.Capability
	if capability == nil {
		capability = ollama.NewCapability(ollama.NewClient(ollama.Config{
			BaseURL:       cfg.Model.OllamaURL,
			Model:         cfg.Model.Model,
			Timeout:       cfg.Timeout(),
			ContextWindow: cfg.Model.ContextWindow,
			AutoStart:     cfg.Model.AutoStart,
			Logger:        app.Log,
		}))
	}

	app.Coord = session.NewCoordinator(capability, session.Config{
		InitialContext: cfg.Model.SystemPrompt,
		CreateTimeout:  cfg.Timeout(),
		Logger:         app.Log,
	})

	notifier := deps.Notifier
	if notifier == nil {
		notifier = chat.NotifierFunc(app.printNotice)
	}

	app.Service = chat.New(repo, app.Coord, stream.NewAssembler(app.Log), chat.Options{
		Defaults: cfg.DefaultSettings(),
		Store:    store,
		Notifier: notifier,
		Logger:   app.Log,
	})
	return app, nil
}

// Apply hands a reloaded config to the running service. Only the default
// settings and the initial context take effect without a restart.
func (a *App) Apply(cfg *config.Config) {
	if err := a.Service.ApplyConfig(cfg.DefaultSettings(), cfg.Model.SystemPrompt); err != nil {
		a.Log.Warn().Err(err).Msg("reloaded config not applied")
		return
	}
	a.Log.Info().Str("path", a.ConfigPath).Msg("config reloaded")
}

// Close shuts the service down and releases the store and log file.
func (a *App) Close(ctx context.Context) error {
	err := a.Service.Shutdown(ctx)
	if cerr := a.Store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	a.closeLog()
	return err
}

func (a *App) closeLog() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
		a.logCloser = nil
	}
}

func (a *App) printNotice(kind chat.Kind, err error) {
	style := WarningStyle
	if kind == chat.KindPersistence || kind == chat.KindUnavailable {
		style = ErrorStyle
	}
	fmt.Fprintln(a.Err, style.Render(noticeText(kind, err)))
}

// noticeText is the user-facing line for a failure.
func noticeText(kind chat.Kind, err error) string {
	switch kind {
	case chat.KindUnavailable:
		return "Model unavailable: " + err.Error()
	case chat.KindSessionCreate:
		return "Could not start a model session: " + err.Error()
	case chat.KindStream:
		return "Reply failed: " + err.Error()
	case chat.KindPersistence:
		return "Could not save conversations: " + err.Error()
	case chat.KindNotFound:
		return "No such conversation"
	case chat.KindBusy:
		return "Still answering the previous prompt"
	default:
		return "Error: " + err.Error()
	}
}
