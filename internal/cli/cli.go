// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdChat Command = iota
	CmdList
	CmdSearch
	CmdExport
	CmdClear
	CmdStatus
	CmdConfig
	CmdVersion
	CmdHelp
)

var commandNames = map[Command]string{
	CmdChat:    "chat",
	CmdList:    "list",
	CmdSearch:  "search",
	CmdExport:  "export",
	CmdClear:   "clear",
	CmdStatus:  "status",
	CmdConfig:  "config",
	CmdVersion: "version",
	CmdHelp:    "help",
}

// String returns the command name.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	Model      string
	Quiet      bool
	Verbose    bool
	JSON       bool
	Ephemeral  bool

	// Command-specific
	Query      string
	Ref        string // conversation number or id prefix
	Output     string
	Copy       bool
	Confirm    bool
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `sidechat - chat with a local model, one conversation at a time

Usage:
  sidechat [flags] [command]

Commands:
  chat                        Interactive chat (default)
  list, ls                    List conversations grouped by age
  search QUERY                Find conversations by title or message text
  export [N|ID] [-o FILE]     Export a conversation as markdown or JSON
    --copy                    Copy to the clipboard instead
  clear --confirm             Delete every stored conversation
  status, s                   Show model and storage status
  config [show|get|set|keys]  Inspect or edit the configuration file
  version                     Show version information
  help                        Show this help

Flags:
  -c, --config FILE           Use FILE instead of ~/.sidechat/config.toml
  -m, --model NAME            Override the configured model
  -q, --quiet                 Minimal output
  -v, --verbose               Verbose output
  --json                      JSON output for list, search and status
  --ephemeral                 Keep conversations in memory only

Chat commands:
  /new                        Start a new conversation
  /list                       List conversations
  /switch N                   Switch to conversation N from /list
  /delete [N]                 Delete conversation N, or the current one
  /rename TITLE               Rename the current conversation
  /search QUERY               Search conversations
  /temp X                     Set temperature for the current conversation
  /topk N                     Set top-k for the current conversation
  /export FILE                Export the current conversation
  /copy                       Copy the current conversation to the clipboard
  /reset                      Drop the model session, keep the history
  /usage                      Show context window usage
  /markdown [on|off]          Toggle markdown rendering of replies
  /help                       Show chat commands
  /quit                       Exit (Ctrl+D also works)
`

// Usage returns the help text.
func Usage() string {
	return usageText
}

// Parse parses argv (without the program name) into a command and its
// arguments.
func Parse(argv []string) (Command, Args, error) {
	remaining, args, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, args, err
	}

	if len(remaining) == 0 {
		return CmdChat, args, nil
	}

	name := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	args.Raw = remaining

	switch name {
	case "chat":
		return CmdChat, args, nil

	case "list", "ls":
		return CmdList, args, nil

	case "search", "find":
		args.Query = strings.TrimSpace(strings.Join(remaining, " "))
		if args.Query == "" {
			return CmdSearch, args, fmt.Errorf("search: missing query")
		}
		return CmdSearch, args, nil

	case "export":
		return CmdExport, args, parseExportArgs(&args, remaining)

	case "clear":
		for _, arg := range remaining {
			if arg == "--confirm" || arg == "-y" {
				args.Confirm = true
			}
		}
		return CmdClear, args, nil

	case "status", "s":
		return CmdStatus, args, nil

	case "config":
		parseConfigArgs(&args, remaining)
		return CmdConfig, args, nil

	case "version", "--version":
		return CmdVersion, args, nil

	case "help", "-h", "--help":
		return CmdHelp, args, nil

	default:
		return CmdHelp, args, fmt.Errorf("unknown command: %s", name)
	}
}

// parseGlobalFlags strips flags valid for every command.
func parseGlobalFlags(argv []string) ([]string, Args, error) {
	var (
		remaining []string
		args      Args
	)

	for i := 0; i < len(argv); i++ {
		arg := argv[i]

		switch {
		case arg == "-c" || arg == "--config":
			if i+1 >= len(argv) {
				return nil, args, fmt.Errorf("%s requires a value", arg)
			}
			i++
			args.ConfigPath = argv[i]
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "-m" || arg == "--model":
			if i+1 >= len(argv) {
				return nil, args, fmt.Errorf("%s requires a value", arg)
			}
			i++
			args.Model = argv[i]
		case strings.HasPrefix(arg, "--model="):
			args.Model = strings.TrimPrefix(arg, "--model=")
		case arg == "-q" || arg == "--quiet":
			args.Quiet = true
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "--json":
			args.JSON = true
		case arg == "--ephemeral":
			args.Ephemeral = true
		default:
			remaining = append(remaining, arg)
		}
	}

	return remaining, args, nil
}

func parseExportArgs(args *Args, remaining []string) error {
	for i := 0; i < len(remaining); i++ {
		arg := remaining[i]
		switch {
		case arg == "-o" || arg == "--output":
			if i+1 >= len(remaining) {
				return fmt.Errorf("export: %s requires a file", arg)
			}
			i++
			args.Output = remaining[i]
		case strings.HasPrefix(arg, "--output="):
			args.Output = strings.TrimPrefix(arg, "--output=")
		case arg == "--copy":
			args.Copy = true
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("export: unknown flag %s", arg)
		default:
			if args.Ref != "" {
				return fmt.Errorf("export: unexpected argument %s", arg)
			}
			args.Ref = arg
		}
	}
	return nil
}

func parseConfigArgs(args *Args, remaining []string) {
	args.Subcommand = "show"
	if len(remaining) == 0 {
		return
	}
	args.Subcommand = strings.ToLower(remaining[0])
	if len(remaining) > 1 {
		args.ConfigKey = remaining[1]
	}
	if len(remaining) > 2 {
		args.ConfigVal = strings.Join(remaining[2:], " ")
	}
}
