// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - The history command: browse the run ledger.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/jeranaias/tidyrun/internal/export"
	"github.com/jeranaias/tidyrun/internal/ledger"
	"github.com/jeranaias/tidyrun/internal/util"
)

const historyUsage = "tidyrun history [show|delete <run-id>] [--limit N]"

var errLedgerDisabled = errors.New("run ledger is disabled (ledger.enabled = false)")

// HandleHistory handles "tidyrun history".
func HandleHistory(ctx context.Context, app *App, args Args) error {
	l, err := app.Ledger()
	if err != nil {
		return err
	}
	if l == nil {
		return errLedgerDisabled
	}

	p := NewArgParser(args.Raw)
	switch args.Subcommand {
	case "", "list", "ls":
		limit, err := positiveInt(p, "limit", 20)
		if err != nil {
			return err
		}
		return historyList(ctx, app, l, limit, args.JSON)
	case "show":
		id, err := requirePositional(p, 1, "run id", historyUsage)
		if err != nil {
			return err
		}
		return historyShow(ctx, app, l, id, args.JSON)
	case "delete", "rm":
		id, err := requirePositional(p, 1, "run id", historyUsage)
		if err != nil {
			return err
		}
		if err := l.Delete(ctx, id); err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("history delete", map[string]string{"deleted": id}).Print(app.Out)
		}
		fmt.Fprintf(app.Out, "%s deleted run %s\n", RenderStatus("ok"), id)
		return nil
	default:
		return &UsageError{Message: fmt.Sprintf("unknown history subcommand %q\nUsage: %s", args.Subcommand, historyUsage)}
	}
}

func historyList(ctx context.Context, app *App, l *ledger.Ledger, limit int, jsonMode bool) error {
	runs, err := l.List(ctx, limit)
	if err != nil {
		return err
	}
	if jsonMode {
		if runs == nil {
			runs = []ledger.Summary{}
		}
		return NewJSONResponse("history", HistoryData{Runs: runs}).Print(app.Out)
	}
	printHistory(app.Out, runs)
	return nil
}

func printHistory(w io.Writer, runs []ledger.Summary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No runs recorded yet."))
		return
	}
	fmt.Fprintln(w, TitleStyle.Render("Recent runs"))
	fmt.Fprintln(w, RenderSeparator())
	for _, r := range runs {
		status := "ok"
		if r.Failed > 0 {
			status = "failed"
		}
		fmt.Fprintf(w, "%s %s  %s  %-28s %d/%d %s\n",
			RenderStatus(status),
			HighlightStyle.Render(shortID(r.ID)),
			DimStyle.Render(r.StartedAt.Local().Format("2006-01-02 15:04")),
			util.TruncateWidth(filepath.Base(r.Source), 28),
			r.Applied, r.Steps, util.Plural(r.Steps, "step"))
	}
}

func historyShow(ctx context.Context, app *App, l *ledger.Ledger, id string, jsonMode bool) error {
	rec, err := l.Get(ctx, id)
	if err != nil {
		return err
	}
	if jsonMode {
		return NewJSONResponse("history show", rec).Print(app.Out)
	}
	report := export.Report(export.Run{
		ID:         rec.ID,
		Source:     rec.Source,
		Model:      rec.Model,
		StartedAt:  rec.StartedAt,
		Duration:   rec.FinishedAt.Sub(rec.StartedAt),
		InputRows:  rec.InputRows,
		OutputRows: rec.OutputRows,
		Outcomes:   rec.Steps,
	}, export.ReportOptions{IncludeCode: true, IncludeAttempts: true})
	fmt.Fprint(app.Out, renderMarkdown(string(report)))
	fmt.Fprintf(app.Out, "%s %s\n", RenderLabel("Input hash"), rec.InputHash)
	fmt.Fprintf(app.Out, "%s %s\n", RenderLabel("Output hash"), rec.OutputHash)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
