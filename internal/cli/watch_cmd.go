// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// watch_cmd.go - The watch command: clean datasets dropped into an inbox.

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeranaias/tidyrun/internal/inbox"
	"github.com/jeranaias/tidyrun/internal/plan"
)

// HandleWatch handles "tidyrun watch". It blocks until ctx is cancelled.
func HandleWatch(ctx context.Context, app *App, args Args) error {
	p := NewArgParser(args.Raw, "existing")
	dir := p.FlagOrDefault("dir", app.Config.Inbox.Dir)
	outDir := p.FlagOrDefault("out", app.Config.Inbox.OutDir)
	if dir == "" {
		return &UsageError{Message: "no inbox directory (use --dir or set inbox.dir)"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}

	w, err := inbox.New(dir, app.inboxHandler(outDir, args),
		inbox.WithDebounce(app.Config.Debounce()),
		inbox.WithScanExisting(p.BoolFlag("existing")),
		inbox.WithLogger(app.Logger))
	if err != nil {
		return err
	}

	if !args.JSON && !args.Quiet {
		fmt.Fprintf(app.Out, "%s %s -> %s (Ctrl+C to stop)\n",
			TitleStyle.Render("Watching"), dir, outDir)
	}
	return w.Run(ctx)
}

// inboxHandler cleans one inbox file into outDir. An empty outDir writes
// next to the input.
func (a *App) inboxHandler(outDir string, args Args) inbox.Handler {
	return func(ctx context.Context, path string) error {
		a.Logger.Info("inbox file", "path", path)
		res, err := a.Clean(ctx, path, CleanOptions{OutDir: outDir})
		if err != nil {
			return err
		}

		applied, failed := plan.Summary(res.Outcomes)
		if args.JSON {
			return NewJSONResponse("watch", cleanData(res)).Print(a.Out)
		}
		if !args.Quiet {
			status := "ok"
			if failed > 0 {
				status = "failed"
			}
			fmt.Fprintf(a.Out, "%s %s -> %s (%d applied, %d failed)\n",
				RenderStatus(status), filepath.Base(path), res.OutputPath, applied, failed)
		}
		return nil
	}
}
