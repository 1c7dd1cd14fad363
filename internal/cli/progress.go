// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/jeranaias/tidyrun/internal/plan"
	"github.com/jeranaias/tidyrun/internal/util"
)

// progressPrinter renders executor events as they happen. The generated
// code of the first attempt of each step is shown; retries show the error
// that triggered them.
type progressPrinter struct {
	w        io.Writer
	showCode bool
}

func newProgressPrinter(w io.Writer, showCode bool) *progressPrinter {
	return &progressPrinter{w: w, showCode: showCode}
}

// Handle implements the executor event callback.
func (p *progressPrinter) Handle(ev plan.Event) {
	switch ev.Kind {
	case plan.EventStepStarted:
		fmt.Fprintf(p.w, "\n%s %s\n",
			TitleStyle.Render(fmt.Sprintf("[%d/%d]", ev.Index+1, ev.Total)),
			HighlightStyle.Render(ev.Step))

	case plan.EventAttemptStarted:
		if ev.Attempt > 1 {
			fmt.Fprintf(p.w, "  %s attempt %d\n", RenderStatus("retry"), ev.Attempt)
		}

	case plan.EventAttemptFailed:
		if p.showCode && ev.Attempt == 1 && ev.Code != "" {
			fmt.Fprintln(p.w, indent(highlightJS(ev.Code), "    "))
		}
		fmt.Fprintf(p.w, "  %s %s\n", WarningStyle.Render("error:"),
			util.TruncateWidth(util.FirstLine(ev.Err), GetTerminalWidth()-12))

	case plan.EventStepApplied:
		if p.showCode && ev.Attempt == 1 && ev.Code != "" {
			fmt.Fprintln(p.w, indent(highlightJS(ev.Code), "    "))
		}
		fmt.Fprintf(p.w, "  %s applied after %d %s\n",
			RenderStatus("ok"), ev.Attempt, util.Plural(ev.Attempt, "attempt"))

	case plan.EventStepFailed:
		fmt.Fprintf(p.w, "  %s skipped after %d %s\n",
			RenderStatus("failed"), ev.Attempt, util.Plural(ev.Attempt, "attempt"))
	}
}
