// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/tidyrun/internal/plan"
	"github.com/jeranaias/tidyrun/internal/util"
)

// =============================================================================
// RUN REPORT
// =============================================================================

// Run describes a finished clean run for reporting.
type Run struct {
	ID         string
	Source     string
	Model      string
	StartedAt  time.Time
	Duration   time.Duration
	InputRows  int
	OutputRows int
	Output     string
	Outcomes   []plan.StepOutcome
}

// ReportOptions configures the markdown report.
type ReportOptions struct {
	// IncludeCode adds the code of the last attempt of every step
	IncludeCode bool

	// IncludeAttempts lists every failed attempt with its error
	IncludeAttempts bool
}

// Report renders run as markdown.
func Report(run Run, opts ReportOptions) []byte {
	var sb strings.Builder
	applied, failed := plan.Summary(run.Outcomes)

	fmt.Fprintf(&sb, "# Cleaning report: %s\n\n", escapeMarkdown(run.Source))

	sb.WriteString("## Run Information\n\n")
	if run.ID != "" {
		fmt.Fprintf(&sb, "- **Run**: `%s`\n", run.ID)
	}
	if run.Model != "" {
		fmt.Fprintf(&sb, "- **Model**: %s\n", run.Model)
	}
	if !run.StartedAt.IsZero() {
		fmt.Fprintf(&sb, "- **Started**: %s\n", formatTimestamp(run.StartedAt))
	}
	if run.Duration > 0 {
		fmt.Fprintf(&sb, "- **Duration**: %s\n", formatDuration(run.Duration))
	}
	fmt.Fprintf(&sb, "- **Rows**: %d in, %d out\n", run.InputRows, run.OutputRows)
	fmt.Fprintf(&sb, "- **Steps**: %d applied, %d failed\n", applied, failed)
	if run.Output != "" {
		fmt.Fprintf(&sb, "- **Output**: `%s`\n", run.Output)
	}
	sb.WriteString("\n")

	if len(run.Outcomes) == 0 {
		sb.WriteString("_No steps were run._\n")
		return []byte(sb.String())
	}

	sb.WriteString("## Steps\n\n")
	sb.WriteString("| # | Step | Status | Attempts |\n")
	sb.WriteString("|---|------|--------|----------|\n")
	for _, o := range run.Outcomes {
		fmt.Fprintf(&sb, "| %d | %s | %s | %d |\n", o.Index+1, escapeTableCell(o.Step), statusLabel(o.Status), len(o.Attempts))
	}
	sb.WriteString("\n")

	for _, o := range run.Outcomes {
		if !opts.IncludeCode && o.Status != plan.StepFailed {
			continue
		}
		fmt.Fprintf(&sb, "### %d. %s\n\n", o.Index+1, escapeMarkdown(o.Step))
		if o.Status == plan.StepFailed {
			fmt.Fprintf(&sb, "**Failed** after %d %s: `%s`\n\n",
				len(o.Attempts), util.Plural(len(o.Attempts), "attempt"), escapeCodeSpan(util.FirstLine(o.Error)))
		}
		if opts.IncludeAttempts {
			for _, a := range o.Attempts {
				if a.Failed() {
					fmt.Fprintf(&sb, "- attempt %d: `%s`\n", a.Number, escapeCodeSpan(util.FirstLine(a.Err)))
				}
			}
			sb.WriteString("\n")
		}
		if code := o.Code(); opts.IncludeCode && code != "" {
			sb.WriteString("```javascript\n")
			sb.WriteString(strings.TrimSpace(code))
			sb.WriteString("\n```\n\n")
		}
	}

	return []byte(strings.TrimRight(sb.String(), "\n") + "\n")
}

func statusLabel(s plan.StepStatus) string {
	switch s {
	case plan.StepApplied:
		return "[OK] Applied"
	case plan.StepFailed:
		return "[FAIL] Failed"
	default:
		return s.String()
	}
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that would break formatting in headings.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeTableCell keeps a value on one table row.
func escapeTableCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

// escapeCodeSpan keeps backticks from closing an inline code span.
func escapeCodeSpan(s string) string {
	return strings.ReplaceAll(s, "`", "'")
}
