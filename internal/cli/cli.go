// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and dispatch for tidyrun.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
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
	CmdHelp Command = iota
	CmdPlan
	CmdClean
	CmdHistory
	CmdSession
	CmdWatch
	CmdConfig
	CmdVersion
)

// String returns the command name as typed on the command line.
func (c Command) String() string {
	switch c {
	case CmdPlan:
		return "plan"
	case CmdClean:
		return "clean"
	case CmdHistory:
		return "history"
	case CmdSession:
		return "session"
	case CmdWatch:
		return "watch"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	default:
		return "help"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet      bool
	Verbose    bool
	JSON       bool
	Model      string
	Provider   string
	ConfigPath string

	// Command-specific
	Subcommand string

	// Raw args remaining after the command word, including command flags
	Raw []string

	// Unknown holds an unrecognized command word
	Unknown string
}

const usageText = `tidyrun - LLM-planned dataset cleaning

tidyrun profiles a CSV or Excel file, asks a language model for a cleaning
plan, then turns every plan step into a small JavaScript transformation that
runs in a sandbox against the table. Failed steps are retried with the error
fed back to the model; a step that still fails is skipped and the run goes on.

Usage:
  tidyrun plan <file>                 Profile a dataset and print a cleaning plan
    --out FILE                        Save the plan as YAML
  tidyrun clean <file>                Plan and execute, write the cleaned CSV
    --plan FILE                       Execute a saved plan instead of planning
    --out FILE                        Output path, .xlsx for a workbook (default: <name>.cleaned.csv)
    --retries N                       Attempts per step (default: 3)
    --export                          Upload the result to object storage
    --code                            Include generated code in the report
  tidyrun history                     List recorded runs
  tidyrun history show <run-id>       Show one run with every attempt
  tidyrun history delete <run-id>     Delete a run
    --limit N                         Number of runs to list (default: 20)
  tidyrun session                     Interactive session
  tidyrun watch                       Clean every dataset dropped into a directory
    --dir DIR                         Inbox directory (default: from config)
    --out DIR                         Output directory (default: from config)
    --existing                        Also clean files already in the inbox
  tidyrun config show                 Show configuration (secrets redacted)
  tidyrun config get <key>            Show one setting
  tidyrun config set <key> <value>    Change one setting
  tidyrun config path                 Print the config file path
  tidyrun version                     Show version information
  tidyrun help                        Show this help

Global Flags:
  --model NAME        Override the configured model
  --provider NAME     Completion backend: groq, openai or ollama
  --config FILE       Use this config file
  --json              Output in JSON format
  -q, --quiet         Only print errors
  -v, --verbose       Debug logging (prompts and console output)

Examples:
  tidyrun plan people.csv --out people.plan.yaml
  tidyrun clean people.csv
  tidyrun clean people.csv --plan people.plan.yaml --out clean.csv
  tidyrun --provider ollama --model qwen2.5-coder:14b clean sales.xlsx
  tidyrun watch --dir ~/inbox --out ~/inbox/cleaned

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "tidyrun version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:         %s\n", runtime.Version())
}

// Parse parses command-line arguments (without the program name) and
// returns the command and args.
func Parse(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)
	if len(remaining) == 0 {
		return CmdHelp, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining
	if len(remaining) > 0 && !strings.HasPrefix(remaining[0], "-") {
		parsedArgs.Subcommand = remaining[0]
	}

	switch cmd {
	case "plan":
		return CmdPlan, parsedArgs
	case "clean", "run":
		return CmdClean, parsedArgs
	case "history", "runs":
		return CmdHistory, parsedArgs
	case "session", "repl":
		return CmdSession, parsedArgs
	case "watch", "inbox":
		return CmdWatch, parsedArgs
	case "config":
		return CmdConfig, parsedArgs
	case "version", "--version":
		return CmdVersion, parsedArgs
	case "help", "-h", "--help":
		return CmdHelp, parsedArgs
	default:
		parsedArgs.Unknown = cmd
		return CmdHelp, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	value := func(i *int) string {
		if *i+1 < len(args) {
			*i++
			return args[*i]
		}
		return ""
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--model":
			parsedArgs.Model = value(&i)
		case "--provider":
			parsedArgs.Provider = value(&i)
		case "--config":
			parsedArgs.ConfigPath = value(&i)
		default:
			switch {
			case strings.HasPrefix(arg, "--model="):
				parsedArgs.Model = strings.TrimPrefix(arg, "--model=")
			case strings.HasPrefix(arg, "--provider="):
				parsedArgs.Provider = strings.TrimPrefix(arg, "--provider=")
			case strings.HasPrefix(arg, "--config="):
				parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
			default:
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, parsedArgs
}

// =============================================================================
// DISPATCH
// =============================================================================

// Run executes cmd and returns the process exit code.
func Run(ctx context.Context, cmd Command, args Args) int {
	err := dispatch(ctx, cmd, args)
	if err == nil {
		return ExitSuccess
	}
	DisplayError(os.Stderr, err, args.JSON)
	return GetExitCode(err)
}

func dispatch(ctx context.Context, cmd Command, args Args) error {
	switch cmd {
	case CmdVersion:
		if args.JSON {
			return NewJSONResponse("version", VersionData{
				Version:   Version,
				GitCommit: GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
			}).Print(os.Stdout)
		}
		PrintVersion(os.Stdout)
		return nil
	case CmdHelp:
		if args.Unknown != "" {
			return &UsageError{Message: fmt.Sprintf("unknown command %q (see 'tidyrun help')", args.Unknown)}
		}
		PrintUsage(os.Stdout)
		return nil
	case CmdConfig:
		return HandleConfig(args, os.Stdout)
	}

	app, err := NewApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	switch cmd {
	case CmdPlan:
		return HandlePlan(ctx, app, args)
	case CmdClean:
		return HandleClean(ctx, app, args)
	case CmdHistory:
		return HandleHistory(ctx, app, args)
	case CmdSession:
		return HandleSession(ctx, app, args)
	case CmdWatch:
		return HandleWatch(ctx, app, args)
	}
	return fmt.Errorf("command %s not implemented", cmd)
}
