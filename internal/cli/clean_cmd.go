// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// clean_cmd.go - The clean command: plan, execute and write a dataset.

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jeranaias/tidyrun/internal/plan"
)

const cleanUsage = "tidyrun clean <file> [--plan FILE] [--out FILE] [--retries N] [--export] [--code]"

// HandleClean handles "tidyrun clean".
func HandleClean(ctx context.Context, app *App, args Args) error {
	p := NewArgParser(args.Raw, "export", "code")
	source, err := requirePositional(p, 0, "dataset path", cleanUsage)
	if err != nil {
		return err
	}
	retries, err := positiveInt(p, "retries", app.Config.Execution.MaxRetries)
	if err != nil {
		return err
	}
	out := p.Flag("out")
	if err := validateOutputPath(source, out); err != nil {
		return err
	}

	opts := CleanOptions{
		PlanPath:    p.Flag("plan"),
		Output:      out,
		Retries:     retries,
		Export:      p.BoolFlag("export"),
		IncludeCode: p.BoolFlag("code"),
	}
	interactive := !args.JSON && !args.Quiet
	if interactive {
		fmt.Fprintf(app.Out, "%s %s with %s\n", TitleStyle.Render("Cleaning"), source, app.Model())
		opts.OnEvent = newProgressPrinter(app.Out, true).Handle
	}

	res, err := app.Clean(ctx, source, opts)
	if err != nil {
		return err
	}

	if args.JSON {
		if err := NewJSONResponse("clean", cleanData(res)).Print(app.Out); err != nil {
			return err
		}
	} else if interactive {
		printCleanSummary(app.Out, res)
	}

	if failed := res.Failed(); failed > 0 {
		return &StepsFailedError{Failed: failed, Total: len(res.Outcomes)}
	}
	return nil
}

func cleanData(res *CleanResult) CleanData {
	applied, failed := plan.Summary(res.Outcomes)
	return CleanData{
		RunID:      res.RunID,
		Source:     res.Source,
		Output:     res.OutputPath,
		Exported:   res.Exported,
		InputRows:  res.InputRows,
		OutputRows: res.Output.NumRows(),
		Applied:    applied,
		Failed:     failed,
		DurationMs: res.Duration.Milliseconds(),
		Steps:      res.Outcomes,
	}
}

func printCleanSummary(w io.Writer, res *CleanResult) {
	fmt.Fprintln(w)
	fmt.Fprint(w, renderMarkdown(string(res.Report)))
	fmt.Fprintln(w, RenderSeparator())

	applied, failed := plan.Summary(res.Outcomes)
	status := "ok"
	if failed > 0 {
		status = "failed"
	}
	fmt.Fprintf(w, "%s %d applied, %d failed in %s\n",
		RenderStatus(status), applied, failed, formatDurationShort(res.Duration))
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Output"), res.OutputPath)
	if res.Exported != "" {
		fmt.Fprintf(w, "%s %s\n", RenderLabel("Exported"), res.Exported)
	}
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Run"), res.RunID)
}
