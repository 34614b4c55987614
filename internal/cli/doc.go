// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and execution for sidechat.
//
// The default command is an interactive REPL over the chat service; the
// remaining commands browse, search, export and clear the stored
// conversations without a model session.
//
// # Key Types
//
//   - Command: Enumeration of the available commands
//   - Args: Parsed command-line arguments
//   - App: The wired component stack built from a config
//   - REPL: The interactive chat loop
//
// # Usage
//
//	cmd, args, err := cli.Parse(os.Args[1:])
//	if err != nil {
//	    ...
//	}
//	os.Exit(cli.Run(ctx, cmd, args))
package cli
