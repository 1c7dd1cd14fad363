// tidyrun - LLM-planned dataset cleaning from the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/tidyrun/internal/cli"
)

func main() {
	cmd, args := cli.Parse(os.Args[1:])

	// Session installs its own per-command interrupt handling.
	ctx := context.Background()
	if cmd != cli.CmdSession {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	code := cli.Run(ctx, cmd, args)
	if code != cli.ExitSuccess {
		os.Exit(code)
	}
}
