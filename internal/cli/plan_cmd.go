// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// plan_cmd.go - The plan command: profile a dataset and print its plan.

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jeranaias/tidyrun/internal/plan"
	"github.com/jeranaias/tidyrun/internal/table"
	"github.com/jeranaias/tidyrun/internal/util"
)

const planUsage = "tidyrun plan <file> [--out FILE]"

// HandlePlan handles "tidyrun plan".
func HandlePlan(ctx context.Context, app *App, args Args) error {
	p := NewArgParser(args.Raw)
	source, err := requirePositional(p, 0, "dataset path", planUsage)
	if err != nil {
		return err
	}

	t, err := table.ReadFile(source)
	if err != nil {
		return err
	}

	if !args.JSON && !args.Quiet {
		fmt.Fprintln(app.Out, TitleStyle.Render("Dataset"))
		fmt.Fprintln(app.Out, t.Info())
		fmt.Fprintln(app.Out, t.HeadString(5))
		fmt.Fprintf(app.Out, "%s asking %s for a plan...\n", DimStyle.Render(">"), app.Model())
	}

	res := app.Planner().Plan(ctx, t)
	if err := ctx.Err(); err != nil {
		return err
	}
	pl, err := res.Plan(source)
	if err != nil {
		return err
	}

	out := p.Flag("out")
	if out != "" {
		if err := plan.SaveFile(out, pl); err != nil {
			return err
		}
	}

	if args.JSON {
		return NewJSONResponse("plan", PlanData{
			Source: source,
			Rows:   t.NumRows(),
			Plan:   pl,
			Saved:  out,
		}).Print(app.Out)
	}

	printPlan(app.Out, pl)
	if out != "" {
		fmt.Fprintf(app.Out, "\n%s plan saved to %s\n", RenderStatus("ok"), out)
	}
	return nil
}

func printPlan(w io.Writer, pl *plan.Plan) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Plan (%d %s)", pl.Len(), util.Plural(pl.Len(), "step"))))
	fmt.Fprintln(w, RenderSeparator())
	for i, step := range pl.Steps {
		fmt.Fprintf(w, "%s %s\n", DimStyle.Render(fmt.Sprintf("%2d.", i+1)), step)
	}
}
