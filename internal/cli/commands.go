// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/sidechat/internal/config"
	"github.com/jeranaias/sidechat/internal/metrics"
	"github.com/jeranaias/sidechat/internal/model"
	"github.com/jeranaias/sidechat/internal/storage"
)

// =============================================================================
// ENTRY POINT
// =============================================================================

// Run executes cmd and returns the process exit code.
func Run(ctx context.Context, cmd Command, args Args) int {
	return RunWith(ctx, cmd, args, Deps{})
}

// RunWith executes cmd with parts of the stack replaced.
func RunWith(ctx context.Context, cmd Command, args Args, deps Deps) int {
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.Err == nil {
		deps.Err = os.Stderr
	}

	if err := run(ctx, cmd, args, deps); err != nil {
		fmt.Fprintln(deps.Err, ErrorStyle.Render("Error: "+err.Error()))
		return 1
	}
	return 0
}

func run(ctx context.Context, cmd Command, args Args, deps Deps) error {
	switch cmd {
	case CmdHelp:
		fmt.Fprint(deps.Out, usageText)
		return nil
	case CmdVersion:
		return runVersion(deps.Out, args)
	}

	cfg, path, err := loadConfig(args)
	if err != nil {
		return err
	}
	if cmd == CmdConfig {
		return runConfig(deps.Out, cfg, path, args)
	}

	app, err := Build(ctx, cfg, path, deps)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Close(shutdownCtx); err != nil {
			app.Log.Error().Err(err).Msg("shutdown")
		}
	}()

	switch cmd {
	case CmdChat:
		return runChat(ctx, app, args, deps.Input)
	case CmdList:
		return runList(app, args)
	case CmdSearch:
		return runSearch(app, args)
	case CmdExport:
		return runExport(app, args)
	case CmdClear:
		return runClear(ctx, app, args)
	case CmdStatus:
		return runStatus(ctx, app, args)
	default:
		return fmt.Errorf("unhandled command %s", cmd)
	}
}

// loadConfig reads the file named by --config, or the default location, and
// applies command-line overrides.
func loadConfig(args Args) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path = args.ConfigPath
		err  error
	)
	if path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
		if p, perr := config.Path(); perr == nil {
			path = p
		}
	}
	if err != nil {
		return nil, "", err
	}

	if args.Model != "" {
		cfg.Model.Model = args.Model
	}
	if args.Verbose {
		cfg.Logging.Level = "debug"
	}
	if args.Ephemeral {
		cfg.Storage.Backend = "memory"
	}
	return cfg, path, nil
}

// =============================================================================
// CHAT
// =============================================================================

func runChat(ctx context.Context, app *App, args Args, in LineReader) error {
	if err := app.Service.Start(ctx); err != nil {
		app.Log.Warn().Err(err).Msg("starting without a model")
	}

	if addr := app.Config.Metrics.Addr; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr); err != nil {
				app.Log.Error().Err(err).Str("addr", addr).Msg("metrics listener stopped")
			}
		}()
	}
	if _, err := os.Stat(app.ConfigPath); err == nil {
		go func() {
			if err := config.Watch(ctx, app.ConfigPath, app.Apply, app.Log); err != nil {
				app.Log.Debug().Err(err).Msg("config watch disabled")
			}
		}()
	}

	if in == nil {
		h := NewHistory(historyPath())
		defer h.Close()
		in = h
	}
	return NewREPL(app, in, args.Quiet).Run(ctx)
}

// =============================================================================
// LIST / SEARCH
// =============================================================================

// listEntry is the JSON form of a listed conversation.
type listEntry struct {
	Number    int       `json:"number"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Group     string    `json:"group,omitempty"`
	Messages  int       `json:"messages"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	TouchedAt time.Time `json:"touchedAt"`
}

func newEntry(n int, c *model.Conversation, group, activeID string) listEntry {
	return listEntry{
		Number:    n,
		ID:        c.ID,
		Title:     c.Title,
		Group:     group,
		Messages:  len(c.Messages),
		Active:    c.ID == activeID,
		CreatedAt: c.CreatedAt,
		TouchedAt: c.TouchedAt,
	}
}

func runList(app *App, args Args) error {
	repo := app.Service.Conversations()
	if !args.JSON {
		printGroups(app.Out, repo, repo.ActiveID())
		return nil
	}

	entries := []listEntry{}
	for _, g := range repo.Groups(time.Now()) {
		for _, c := range g.Conversations {
			entries = append(entries, newEntry(len(entries)+1, c, g.Label, repo.ActiveID()))
		}
	}
	return writeJSON(app.Out, entries)
}

func runSearch(app *App, args Args) error {
	repo := app.Service.Conversations()
	results := repo.Search(args.Query)
	if !args.JSON {
		printResults(app.Out, results)
		return nil
	}

	entries := make([]listEntry, 0, len(results))
	for i, c := range results {
		entries = append(entries, newEntry(i+1, c, "", repo.ActiveID()))
	}
	return writeJSON(app.Out, entries)
}

// =============================================================================
// EXPORT / CLEAR
// =============================================================================

func runExport(app *App, args Args) error {
	id, err := resolveRef(app, args.Ref)
	if err != nil {
		return err
	}

	switch {
	case args.Copy:
		if err := app.Service.CopyToClipboard(id); err != nil {
			return err
		}
		if !args.Quiet {
			fmt.Fprintln(app.Err, SuccessStyle.Render("Copied to clipboard"))
		}
		return nil

	case args.Output != "":
		if err := app.Service.ExportFile(id, args.Output); err != nil {
			return err
		}
		if !args.Quiet {
			fmt.Fprintln(app.Err, SuccessStyle.Render("Exported to "+args.Output))
		}
		return nil

	default:
		data, err := app.Service.Export(id)
		if err != nil {
			return err
		}
		_, err = app.Out.Write(data)
		return err
	}
}

// resolveRef maps "" to the active conversation, a number to the list
// order, and anything else to an id prefix.
func resolveRef(app *App, ref string) (string, error) {
	repo := app.Service.Conversations()
	if ref == "" {
		if id := repo.ActiveID(); id != "" {
			return id, nil
		}
		return "", errors.New("no active conversation; pass a number from 'sidechat list'")
	}
	if n, err := strconv.Atoi(ref); err == nil {
		ids := listingOrder(repo)
		if n < 1 || n > len(ids) {
			return "", fmt.Errorf("no conversation %d", n)
		}
		return ids[n-1], nil
	}
	return resolveID(repo, ref)
}

func runClear(ctx context.Context, app *App, args Args) error {
	n := app.Service.Conversations().Len()
	if !args.Confirm {
		return fmt.Errorf("refusing to delete %d conversations without --confirm", n)
	}
	if err := app.Service.ClearAll(ctx); err != nil {
		return err
	}
	if !args.Quiet {
		fmt.Fprintln(app.Out, SuccessStyle.Render(fmt.Sprintf("Deleted %d conversations", n)))
	}
	return nil
}

// =============================================================================
// STATUS
// =============================================================================

// statusReport is the JSON form of the status command.
type statusReport struct {
	Model         string `json:"model"`
	OllamaURL     string `json:"ollamaUrl"`
	Available     bool   `json:"available"`
	Error         string `json:"error,omitempty"`
	Backend       string `json:"backend"`
	DataDir       string `json:"dataDir,omitempty"`
	Conversations int    `json:"conversations"`
	Capacity      int    `json:"capacity"`
	ConfigPath    string `json:"configPath"`
}

func runStatus(ctx context.Context, app *App, args Args) error {
	cfg := app.Config
	repo := app.Service.Conversations()

	report := statusReport{
		Model:         cfg.Model.Model,
		OllamaURL:     cfg.Model.OllamaURL,
		Backend:       app.Store.Backend().Name(),
		Conversations: repo.Len(),
		Capacity:      repo.Capacity(),
		ConfigPath:    app.ConfigPath,
	}
	if report.Backend == storage.BackendFile || report.Backend == storage.BackendSQLite {
		report.DataDir = cfg.Storage.DataDir
	}
	if err := app.Service.Start(ctx); err != nil {
		report.Error = err.Error()
	} else {
		report.Available = true
	}

	if args.JSON {
		return writeJSON(app.Out, report)
	}

	w := app.Out
	fmt.Fprintln(w, TitleStyle.Render("sidechat status"))
	fmt.Fprintln(w, RenderSeparator(terminalWidth(w)))
	fmt.Fprintf(w, "%s %s %s\n", LabelStyle.Render("Model"), report.Model, RenderStatus(report.Available))
	if report.Error != "" {
		fmt.Fprintf(w, "%s %s\n", LabelStyle.Render(""), DimStyle.Render(report.Error))
	}
	fmt.Fprintf(w, "%s %s\n", LabelStyle.Render("Ollama"), report.OllamaURL)
	fmt.Fprintf(w, "%s %s %s\n", LabelStyle.Render("Storage"), report.Backend, DimStyle.Render(report.DataDir))
	fmt.Fprintf(w, "%s %d of %d\n", LabelStyle.Render("Conversations"), report.Conversations, report.Capacity)
	fmt.Fprintf(w, "%s %s\n", LabelStyle.Render("Config"), report.ConfigPath)
	return nil
}

// =============================================================================
// CONFIG / VERSION
// =============================================================================

func runConfig(w io.Writer, cfg *config.Config, path string, args Args) error {
	switch args.Subcommand {
	case "show", "":
		fmt.Fprintln(w, cfg.String())
		return nil

	case "path":
		fmt.Fprintln(w, path)
		return nil

	case "keys":
		keys := config.GetAllKeys()
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintln(w, k)
		}
		return nil

	case "get":
		v, err := cfg.Get(args.ConfigKey)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, v)
		return nil

	case "set":
		if args.ConfigKey == "" || args.ConfigVal == "" {
			return errors.New("usage: sidechat config set KEY VALUE")
		}
		// Edit the file itself; flag overrides must not leak into it.
		onDisk := config.Default()
		if _, err := os.Stat(path); err == nil {
			if onDisk, err = config.LoadFromPath(path); err != nil {
				return err
			}
		}
		if err := onDisk.Set(args.ConfigKey, args.ConfigVal); err != nil {
			return err
		}
		if err := onDisk.Validate(); err != nil {
			return err
		}
		if strings.EqualFold(filepath.Ext(path), ".json") {
			return config.SaveJSON(onDisk, path)
		}
		return config.SaveTOML(onDisk, path)

	default:
		return fmt.Errorf("unknown config subcommand: %s", args.Subcommand)
	}
}

func runVersion(w io.Writer, args Args) error {
	if args.JSON {
		return writeJSON(w, map[string]string{
			"version":   Version,
			"gitCommit": GitCommit,
			"buildDate": BuildDate,
			"goVersion": runtime.Version(),
		})
	}
	fmt.Fprintf(w, "sidechat %s (%s, built %s, %s %s/%s)\n",
		Version, GitCommit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
