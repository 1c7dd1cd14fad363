// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jeranaias/tidyrun/internal/codegen"
	"github.com/jeranaias/tidyrun/internal/sandbox"
	"github.com/jeranaias/tidyrun/internal/table"
)

// DefaultMaxRetries is the number of attempts a step gets before it fails.
const DefaultMaxRetries = 3

// errNoTable is reported when a transformer succeeds without producing a table.
var errNoTable = errors.New("transformer returned no table")

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies one natural-language step to a table. t is a private
// copy that the transformer may modify. The returned code is recorded on the
// attempt even when err is non-nil.
type Transformer interface {
	Apply(ctx context.Context, t *table.Table, step, priorError string) (out *table.Table, code string, err error)
}

// TransformFunc adapts a function to the Transformer interface.
type TransformFunc func(ctx context.Context, t *table.Table, step, priorError string) (*table.Table, string, error)

// Apply implements Transformer.
func (f TransformFunc) Apply(ctx context.Context, t *table.Table, step, priorError string) (*table.Table, string, error) {
	return f(ctx, t, step, priorError)
}

// CodeTransformer synthesizes JavaScript for a step and runs it in a sandbox.
type CodeTransformer struct {
	synth *codegen.Synthesizer
	env   *sandbox.Env
}

// NewCodeTransformer pairs a synthesizer with the environment its code runs in.
// The caller owns env and closes it when the run ends.
func NewCodeTransformer(synth *codegen.Synthesizer, env *sandbox.Env) *CodeTransformer {
	return &CodeTransformer{synth: synth, env: env}
}

// Apply implements Transformer.
func (c *CodeTransformer) Apply(ctx context.Context, t *table.Table, step, priorError string) (*table.Table, string, error) {
	code, err := c.synth.Synthesize(ctx, t, step, priorError)
	if err != nil {
		return nil, "", err
	}
	out, err := c.env.Run(ctx, t, code)
	return out, code, err
}

// =============================================================================
// EVENTS
// =============================================================================

// EventKind identifies a progress event.
type EventKind int

const (
	EventStepStarted EventKind = iota
	EventAttemptStarted
	EventAttemptFailed
	EventStepApplied
	EventStepFailed
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventStepStarted:
		return "step_started"
	case EventAttemptStarted:
		return "attempt_started"
	case EventAttemptFailed:
		return "attempt_failed"
	case EventStepApplied:
		return "step_applied"
	case EventStepFailed:
		return "step_failed"
	default:
		return "unknown"
	}
}

// Event reports progress of a run. Code and Err are set on attempt failures
// and on terminal step events.
type Event struct {
	Kind    EventKind
	Index   int
	Total   int
	Step    string
	Attempt int
	Code    string
	Err     string
}

// =============================================================================
// EXECUTOR
// =============================================================================

// Executor runs a plan step by step with bounded retries per step.
type Executor struct {
	transformer Transformer
	maxRetries  int
	onEvent     func(Event)
	logger      *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMaxRetries sets the attempt bound per step. Values below 1 keep the default.
func WithMaxRetries(n int) ExecutorOption {
	return func(e *Executor) {
		if n >= 1 {
			e.maxRetries = n
		}
	}
}

// WithEventHandler sets a callback invoked synchronously for every event.
func WithEventHandler(fn func(Event)) ExecutorOption {
	return func(e *Executor) { e.onEvent = fn }
}

// WithLogger sets the executor's logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates an executor that applies steps through tr.
func NewExecutor(tr Transformer, opts ...ExecutorOption) *Executor {
	e := &Executor{
		transformer: tr,
		maxRetries:  DefaultMaxRetries,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxRetries returns the attempt bound per step.
func (e *Executor) MaxRetries() int {
	return e.maxRetries
}

// Run applies every step of p in order, starting from t. t itself is never
// modified. A step that exhausts its attempts is recorded as Failed and the
// next step starts from the last committed table. After cancellation the
// current and remaining steps are Failed with the context error. Run returns
// the committed table and exactly one outcome per step.
func (e *Executor) Run(ctx context.Context, t *table.Table, p *Plan) (*table.Table, []StepOutcome) {
	committed := t.Clone()
	if p.Len() == 0 {
		return committed, nil
	}

	outcomes := make([]StepOutcome, 0, len(p.Steps))
	for i, step := range p.Steps {
		var out StepOutcome
		committed, out = e.runStep(ctx, committed, i, len(p.Steps), step)
		outcomes = append(outcomes, out)
	}

	applied, failed := Summary(outcomes)
	e.logger.Info("plan finished", "steps", len(outcomes), "applied", applied, "failed", failed)
	return committed, outcomes
}

// runStep drives one step from Pending to Applied or Failed and returns the
// table the next step starts from.
func (e *Executor) runStep(ctx context.Context, committed *table.Table, index, total int, step string) (*table.Table, StepOutcome) {
	out := StepOutcome{Index: index, Step: step, Status: StepAttempting}
	e.emit(Event{Kind: EventStepStarted, Index: index, Total: total, Step: step})

	priorError := ""
	for n := 1; n <= e.maxRetries; n++ {
		if err := ctx.Err(); err != nil {
			priorError = err.Error()
			break
		}
		e.emit(Event{Kind: EventAttemptStarted, Index: index, Total: total, Step: step, Attempt: n})

		next, code, err := e.attempt(ctx, committed.Clone(), step, priorError)
		a := Attempt{Number: n, Code: code}
		if err == nil {
			out.Attempts = append(out.Attempts, a)
			out.Status = StepApplied
			e.logger.Info("step applied", "step", index+1, "attempt", n)
			e.emit(Event{Kind: EventStepApplied, Index: index, Total: total, Step: step, Attempt: n, Code: code})
			return next, out
		}

		a.Err = err.Error()
		out.Attempts = append(out.Attempts, a)
		priorError = a.Err
		e.logger.Warn("attempt failed", "step", index+1, "attempt", n, "error", a.Err)
		e.emit(Event{Kind: EventAttemptFailed, Index: index, Total: total, Step: step, Attempt: n, Code: code, Err: a.Err})
	}

	out.Status = StepFailed
	out.Error = priorError
	e.logger.Error("step failed", "step", index+1, "attempts", len(out.Attempts), "error", priorError)
	e.emit(Event{Kind: EventStepFailed, Index: index, Total: total, Step: step, Attempt: len(out.Attempts), Code: out.Code(), Err: priorError})
	return committed, out
}

func (e *Executor) attempt(ctx context.Context, candidate *table.Table, step, priorError string) (*table.Table, string, error) {
	if e.transformer == nil {
		return nil, "", errors.New("transformer not configured")
	}
	next, code, err := e.transformer.Apply(ctx, candidate, step, priorError)
	if err == nil && next == nil {
		err = errNoTable
	}
	return next, code, err
}

func (e *Executor) emit(ev Event) {
	if e.onEvent != nil {
		e.onEvent(ev)
	}
}
