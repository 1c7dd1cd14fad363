// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tidyrun/internal/plan"
	"github.com/jeranaias/tidyrun/internal/session"
	"github.com/jeranaias/tidyrun/internal/table"
)

type fakePlanner struct {
	res   plan.Result
	calls int
}

func (f *fakePlanner) Plan(context.Context, *table.Table) plan.Result {
	f.calls++
	return f.res
}

// lowerNames lowercases the Name column on a copy and reports every step applied.
func lowerNames(_ context.Context, t *table.Table, p *plan.Plan) (*table.Table, []plan.StepOutcome) {
	out := t.Clone()
	_ = out.MapStrings("Name", strings.ToLower)
	outcomes := make([]plan.StepOutcome, len(p.Steps))
	for i, s := range p.Steps {
		outcomes[i] = plan.StepOutcome{Index: i, Step: s, Status: plan.StepApplied, Attempts: []plan.Attempt{{Number: 1}}}
	}
	return out, outcomes
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSessionLifecycle(t *testing.T) {
	planner := &fakePlanner{res: plan.Result{Steps: []string{"Lowercase Name"}}}
	s := session.New(planner, lowerNames)
	ctx := context.Background()

	assert.True(t, strings.HasPrefix(s.ID(), "sess_"))

	_, err := s.Plan(ctx)
	require.ErrorIs(t, err, session.ErrNoDataset)
	_, err = s.Execute(ctx)
	require.ErrorIs(t, err, session.ErrNoDataset)

	path := writeCSV(t, "Name,Age\nANN,25\nBOB,30\n")
	require.NoError(t, s.Load(path))

	_, err = s.Execute(ctx)
	require.ErrorIs(t, err, plan.ErrNoPlan)
	require.ErrorIs(t, s.Save(filepath.Join(t.TempDir(), "x.csv")), session.ErrNoResult)

	p, err := s.Plan(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lowercase Name"}, p.Steps)
	assert.Equal(t, path, p.Source)

	outcomes, err := s.Execute(ctx)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	cleaned, _, err := s.Result()
	require.NoError(t, err)
	v, err := cleaned.Cell(0, "Name")
	require.NoError(t, err)
	assert.Equal(t, "ann", v)

	original, _, err := s.Dataset()
	require.NoError(t, err)
	v, err = original.Cell(0, "Name")
	require.NoError(t, err)
	assert.Equal(t, "ANN", v, "the loaded dataset is never modified")

	out := filepath.Join(t.TempDir(), "people.cleaned.csv")
	require.NoError(t, s.Save(out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Name,Age\nann,25\nbob,30\n", string(data))

	st := s.GetStatus()
	assert.Equal(t, 2, st.Rows)
	assert.Equal(t, 1, st.Steps)
	assert.True(t, st.HasResult)
	assert.Equal(t, 1, st.Applied)
}

func TestLoadClearsPlanAndResult(t *testing.T) {
	s := session.New(&fakePlanner{res: plan.Result{Steps: []string{"a"}}}, lowerNames)
	ctx := context.Background()
	s.LoadTable("one", table.MustFromColumns(table.Col("Name", "A")))
	_, err := s.Plan(ctx)
	require.NoError(t, err)
	_, err = s.Execute(ctx)
	require.NoError(t, err)

	s.LoadTable("two", table.MustFromColumns(table.Col("Name", "B")))
	_, err = s.CurrentPlan()
	require.ErrorIs(t, err, plan.ErrNoPlan)
	_, _, err = s.Result()
	require.ErrorIs(t, err, session.ErrNoResult)
}

func TestPlanFailures(t *testing.T) {
	ctx := context.Background()

	s := session.New(&fakePlanner{res: plan.Result{Error: "invalid plan JSON"}}, lowerNames)
	s.LoadTable("x", table.MustFromColumns(table.Col("Name", "A")))
	_, err := s.Plan(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid plan JSON")

	s = session.New(&fakePlanner{res: plan.Result{Steps: []string{}}}, lowerNames)
	s.LoadTable("x", table.MustFromColumns(table.Col("Name", "A")))
	_, err = s.Plan(ctx)
	require.ErrorIs(t, err, plan.ErrEmptyPlan)
}

func TestSetPlanAndReset(t *testing.T) {
	s := session.New(nil, lowerNames)
	s.LoadTable("x", table.MustFromColumns(table.Col("Name", "A")))
	s.SetPlan(&plan.Plan{ID: "p", Steps: []string{"Lowercase Name"}})

	outcomes, err := s.Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, outcomes, 1)

	s.Reset()
	_, _, err = s.Dataset()
	require.ErrorIs(t, err, session.ErrNoDataset)
	assert.Equal(t, session.Status{}.Rows, s.GetStatus().Rows)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", session.FormatDuration(42*time.Second))
	assert.Equal(t, "2m", session.FormatDuration(2*time.Minute))
	assert.Equal(t, "2m 5s", session.FormatDuration(125*time.Second))
}
