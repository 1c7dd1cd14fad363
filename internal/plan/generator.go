// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/tidyrun/internal/completion"
	"github.com/jeranaias/tidyrun/internal/table"
)

// maxResponseSize bounds the planner output that will be parsed.
const maxResponseSize = 1024 * 1024

// SampleRows is the number of leading rows included in the profile.
const SampleRows = 3

// =============================================================================
// RESULT
// =============================================================================

// Result is the planner's answer. Exactly one of Steps or Error is meaningful:
// on failure Error is set and Steps is nil.
type Result struct {
	Steps []string `json:"steps,omitempty"`
	Error string   `json:"error,omitempty"`
}

// Failed reports whether planning failed.
func (r Result) Failed() bool {
	return r.Error != ""
}

// Empty reports whether planning succeeded with no steps.
func (r Result) Empty() bool {
	return !r.Failed() && len(r.Steps) == 0
}

// Plan wraps a successful result as a Plan for source.
func (r Result) Plan(source string) (*Plan, error) {
	if r.Failed() {
		return nil, fmt.Errorf("planning failed: %s", r.Error)
	}
	if r.Empty() {
		return nil, ErrEmptyPlan
	}
	steps := make([]string, len(r.Steps))
	copy(steps, r.Steps)
	return &Plan{
		ID:        uuid.New().String(),
		Source:    source,
		CreatedAt: time.Now().UTC(),
		Steps:     steps,
	}, nil
}

// =============================================================================
// PLANNER
// =============================================================================

// Planner profiles a table and asks the model for a list of cleaning steps.
type Planner struct {
	svc    completion.Service
	model  string
	logger *slog.Logger
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithPlannerModel overrides the backend's default model.
func WithPlannerModel(model string) PlannerOption {
	return func(p *Planner) { p.model = model }
}

// WithPlannerLogger sets the planner's logger.
func WithPlannerLogger(logger *slog.Logger) PlannerOption {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPlanner creates a Planner backed by svc.
func NewPlanner(svc completion.Service, opts ...PlannerOption) *Planner {
	p := &Planner{svc: svc, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan returns the cleaning steps for t. Service and parse failures are
// reported in Result.Error rather than returned.
func (p *Planner) Plan(ctx context.Context, t *table.Table) Result {
	if p.svc == nil {
		return Result{Error: "completion service not configured"}
	}

	prompt := BuildPlanPrompt(t)
	text, err := p.svc.Complete(ctx, completion.Request{
		Model:  p.model,
		Prompt: prompt,
		JSON:   true,
	})
	if err != nil {
		p.logger.Warn("planning request failed", "error", err)
		return Result{Error: err.Error()}
	}

	steps, err := ParseSteps(text)
	if err != nil {
		p.logger.Warn("unparsable plan", "error", err, "response_bytes", len(text))
		return Result{Error: err.Error()}
	}
	p.logger.Info("plan generated", "steps", len(steps))
	return Result{Steps: steps}
}

const planExamples = `EXAMPLE 1:
Input: Column 'Age' has values ['25', 'Unknown', '30']. Column 'Salary' is int64.
Output: {"steps": ["Convert 'Age' to numeric, coercing errors", "Fill missing 'Age' values with median"]}

EXAMPLE 2:
Input: Column 'Date' is object type '2021-01-01'. Column 'ID' is valid.
Output: {"steps": ["Convert 'Date' to datetime format"]}

EXAMPLE 3:
Input: Column 'Country' has values ['USA', 'usa', ' U.S.A ']. Column 'Email' has 2 missing values.
Output: {"steps": ["Strip whitespace and normalize case in 'Country'", "Drop rows where 'Email' is missing"]}`

// BuildPlanPrompt renders the profiling prompt for t.
func BuildPlanPrompt(t *table.Table) string {
	var b strings.Builder
	b.WriteString("You are a senior data strategy manager.\n\n")
	b.WriteString("DATA PROFILE:\n")
	b.WriteString(t.Info())
	b.WriteString("\n\nSAMPLE DATA:\n")
	b.WriteString(t.HeadString(SampleRows))
	b.WriteString(`

TASK:
Analyze the dataset and create a strategic cleaning plan.

STRATEGY RULES:
1. Look for mixed data types (numbers stored as strings).
2. Identify missing values and decide whether to drop or fill.
3. Detect potential categorical inconsistencies (e.g., "USA" vs "usa").

`)
	b.WriteString(planExamples)
	b.WriteString(`

OUTPUT FORMAT:
Return ONLY a valid JSON object with a key 'steps' holding a list of strings.`)
	return b.String()
}

// ParseSteps decodes a planner response of the form {"steps": [...]}.
// Markdown fences around the object are tolerated.
func ParseSteps(response string) ([]string, error) {
	if len(response) > maxResponseSize {
		return nil, fmt.Errorf("response too large: %d bytes exceeds %d limit", len(response), maxResponseSize)
	}

	text := strings.TrimSpace(response)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var raw struct {
		Steps *[]any `json:"steps"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("invalid plan JSON: %w", err)
	}
	if raw.Steps == nil {
		return nil, fmt.Errorf("invalid plan JSON: missing %q key", "steps")
	}

	steps := make([]string, 0, len(*raw.Steps))
	for i, item := range *raw.Steps {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("invalid plan JSON: step %d is %T, not a string", i+1, item)
		}
		if s = strings.TrimSpace(s); s != "" {
			steps = append(steps, s)
		}
	}
	return steps, nil
}
