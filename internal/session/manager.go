// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jeranaias/tidyrun/internal/export"
	"github.com/jeranaias/tidyrun/internal/plan"
	"github.com/jeranaias/tidyrun/internal/table"
)

var (
	// ErrNoDataset is returned when an operation needs a loaded dataset.
	ErrNoDataset = errors.New("no dataset loaded")

	// ErrNoResult is returned when an operation needs a finished run.
	ErrNoResult = errors.New("no cleaned result; run the plan first")
)

// Planner produces a plan for a table.
type Planner interface {
	Plan(ctx context.Context, t *table.Table) plan.Result
}

// RunFunc executes p against t and returns the cleaned table and one outcome per step.
type RunFunc func(ctx context.Context, t *table.Table, p *plan.Plan) (*table.Table, []plan.StepOutcome)

// =============================================================================
// SESSION
// =============================================================================

// Session holds the state of one interactive cleaning session: the loaded
// dataset, its plan and the cleaned result. Loading a dataset clears the plan
// and the result.
type Session struct {
	mu sync.Mutex

	id           string
	startTime    time.Time
	lastActivity time.Time

	planner Planner
	run     RunFunc
	logger  *slog.Logger

	source   string
	dataset  *table.Table
	plan     *plan.Plan
	result   *table.Table
	outcomes []plan.StepOutcome
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an empty session.
func New(planner Planner, run RunFunc, opts ...Option) *Session {
	now := time.Now()
	s := &Session{
		id:           generateSessionID(now),
		startTime:    now,
		lastActivity: now,
		planner:      planner,
		run:          run,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session ID.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Session) touch() {
	s.lastActivity = time.Now()
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Load reads a dataset from path and makes it current.
func (s *Session) Load(path string) error {
	t, err := table.ReadFile(path)
	if err != nil {
		return err
	}
	s.LoadTable(path, t)
	return nil
}

// LoadTable makes t the current dataset.
func (s *Session) LoadTable(source string, t *table.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.source = source
	s.dataset = t
	s.plan = nil
	s.result = nil
	s.outcomes = nil
	s.logger.Info("dataset loaded", "source", source, "rows", t.NumRows(), "columns", t.NumCols())
}

// Dataset returns the loaded table and its source.
func (s *Session) Dataset() (*table.Table, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dataset == nil {
		return nil, "", ErrNoDataset
	}
	return s.dataset, s.source, nil
}

// Plan asks the planner for a plan for the loaded dataset and stores it.
// A previous result is discarded.
func (s *Session) Plan(ctx context.Context) (*plan.Plan, error) {
	s.mu.Lock()
	t, source := s.dataset, s.source
	s.mu.Unlock()
	if t == nil {
		return nil, ErrNoDataset
	}
	if s.planner == nil {
		return nil, errors.New("planner not configured")
	}

	res := s.planner.Plan(ctx, t)
	p, err := res.Plan(source)
	if err != nil {
		return nil, err
	}
	s.SetPlan(p)
	return p, nil
}

// SetPlan replaces the current plan, for example with one loaded from a file.
func (s *Session) SetPlan(p *plan.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.plan = p
	s.result = nil
	s.outcomes = nil
}

// CurrentPlan returns the stored plan.
func (s *Session) CurrentPlan() (*plan.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan == nil {
		return nil, plan.ErrNoPlan
	}
	return s.plan, nil
}

// Execute runs the stored plan against the loaded dataset. The dataset is
// never modified; the cleaned table is stored as the result.
func (s *Session) Execute(ctx context.Context) ([]plan.StepOutcome, error) {
	s.mu.Lock()
	t, p := s.dataset, s.plan
	s.mu.Unlock()
	if t == nil {
		return nil, ErrNoDataset
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if s.run == nil {
		return nil, errors.New("runner not configured")
	}

	cleaned, outcomes := s.run(ctx, t, p)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.result = cleaned
	s.outcomes = outcomes
	applied, failed := plan.Summary(outcomes)
	s.logger.Info("plan executed", "applied", applied, "failed", failed, "rows", cleaned.NumRows())
	return outcomes, nil
}

// Result returns the cleaned table and step outcomes of the last Execute.
func (s *Session) Result() (*table.Table, []plan.StepOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil, nil, ErrNoResult
	}
	return s.result, s.outcomes, nil
}

// Save writes the cleaned table to path, as XLSX for .xlsx paths and CSV
// otherwise.
func (s *Session) Save(path string) error {
	cleaned, _, err := s.Result()
	if err != nil {
		return err
	}
	if err := export.WriteFile(path, cleaned); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// Reset clears the dataset, plan and result.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.source = ""
	s.dataset = nil
	s.plan = nil
	s.result = nil
	s.outcomes = nil
}

// =============================================================================
// SESSION STATUS
// =============================================================================

// Status summarizes a session.
type Status struct {
	SessionID string
	StartTime time.Time
	Duration  time.Duration
	IdleTime  time.Duration
	Source    string
	Rows      int
	Columns   int
	Steps     int
	HasResult bool
	Applied   int
	Failed    int
}

// GetStatus returns the current session status.
func (s *Session) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	st := Status{
		SessionID: s.id,
		StartTime: s.startTime,
		Duration:  now.Sub(s.startTime),
		IdleTime:  now.Sub(s.lastActivity),
		Source:    s.source,
		Steps:     s.plan.Len(),
		HasResult: s.result != nil,
	}
	if s.dataset != nil {
		st.Rows = s.dataset.NumRows()
		st.Columns = s.dataset.NumCols()
	}
	st.Applied, st.Failed = plan.Summary(s.outcomes)
	return st
}

// generateSessionID creates a unique session ID.
func generateSessionID(t time.Time) string {
	return "sess_" + t.Format("20060102_150405")
}

// FormatDuration returns a human-readable duration string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm %ds", mins, secs)
}
