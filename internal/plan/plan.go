// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyPlan is returned when a plan has no steps to run.
	ErrEmptyPlan = errors.New("plan has no steps")

	// ErrNoPlan is returned when an operation needs a plan that was never made.
	ErrNoPlan = errors.New("no plan")
)

// =============================================================================
// STEP STATUS
// =============================================================================

// StepStatus represents the state of a single step during a run.
type StepStatus int

const (
	// StepPending means the step has not been attempted yet
	StepPending StepStatus = iota

	// StepAttempting means synthesize and execute attempts are in progress
	StepAttempting

	// StepApplied means an attempt succeeded and its table was committed
	StepApplied

	// StepFailed means every attempt failed or the run was cancelled
	StepFailed
)

// String returns the string representation of the step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "Pending"
	case StepAttempting:
		return "Attempting"
	case StepApplied:
		return "Applied"
	case StepFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the status by name.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *StepStatus) UnmarshalText(text []byte) error {
	for _, c := range []StepStatus{StepPending, StepAttempting, StepApplied, StepFailed} {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown step status %q", text)
}

// IsTerminal reports whether the status is Applied or Failed.
func (s StepStatus) IsTerminal() bool {
	return s == StepApplied || s == StepFailed
}

// =============================================================================
// PLAN
// =============================================================================

// Plan is an ordered list of natural-language cleaning steps. Indices are
// stable and define execution order.
type Plan struct {
	ID        string    `yaml:"id" json:"id"`
	Source    string    `yaml:"source,omitempty" json:"source,omitempty"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	Steps     []string  `yaml:"steps" json:"steps"`
}

// Len returns the number of steps.
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Steps)
}

// Validate reports ErrNoPlan for a nil plan and ErrEmptyPlan when there are no steps.
func (p *Plan) Validate() error {
	if p == nil {
		return ErrNoPlan
	}
	if len(p.Steps) == 0 {
		return ErrEmptyPlan
	}
	return nil
}

// =============================================================================
// OUTCOMES
// =============================================================================

// Attempt records one synthesize and execute iteration of a step.
type Attempt struct {
	// Number starts at 1
	Number int    `json:"number"`
	Code   string `json:"code,omitempty"`
	Err    string `json:"error,omitempty"`
}

// Failed reports whether the attempt raised.
func (a Attempt) Failed() bool {
	return a.Err != ""
}

// StepOutcome is the terminal result of one step.
type StepOutcome struct {
	Index    int        `json:"index"`
	Step     string     `json:"step"`
	Status   StepStatus `json:"status"`
	Attempts []Attempt  `json:"attempts"`

	// Error is the last error message when Status is StepFailed
	Error string `json:"error,omitempty"`
}

// Code returns the code of the last attempt, if any.
func (o StepOutcome) Code() string {
	if len(o.Attempts) == 0 {
		return ""
	}
	return o.Attempts[len(o.Attempts)-1].Code
}

// Summary counts applied and failed outcomes.
func Summary(outcomes []StepOutcome) (applied, failed int) {
	for _, o := range outcomes {
		switch o.Status {
		case StepApplied:
			applied++
		case StepFailed:
			failed++
		}
	}
	return applied, failed
}
