// sidechat - a terminal client for multi-conversation chat with a local model.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/sidechat/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args, err := cli.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "sidechat:", err)
		fmt.Fprint(os.Stderr, cli.Usage())
		os.Exit(2)
	}

	// SIGTERM ends the session. os.Interrupt is left to the REPL, where
	// Ctrl+C cancels the reply in progress.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	code := cli.Run(ctx, cmd, args)
	stop()
	os.Exit(code)
}
