// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tidyrun/internal/ledger"
	"github.com/jeranaias/tidyrun/internal/plan"
	"github.com/jeranaias/tidyrun/internal/table"
)

func openLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "db", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sampleRun(id string, started time.Time) ledger.RunRecord {
	return ledger.RunRecord{
		ID:         id,
		Source:     "people.csv",
		Model:      "llama-3.3-70b-versatile",
		PlanID:     "plan-1",
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		InputHash:  "in",
		OutputHash: "out",
		InputRows:  10,
		OutputRows: 8,
		Steps: []plan.StepOutcome{
			{
				Index:    0,
				Step:     "Convert Age to numeric",
				Status:   plan.StepApplied,
				Attempts: []plan.Attempt{{Number: 1, Code: `df.toNumeric("Age")`}},
			},
			{
				Index:  1,
				Step:   "Break things",
				Status: plan.StepFailed,
				Error:  "bad",
				Attempts: []plan.Attempt{
					{Number: 1, Code: `throw new Error("bad")`, Err: "bad"},
					{Number: 2, Code: `throw new Error("bad")`, Err: "bad"},
					{Number: 3, Err: "model returned no code"},
				},
			},
		},
	}
}

func TestRecordAndGet(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	started := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	rec := sampleRun("run-abc", started)

	id, err := l.Record(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "run-abc", id)

	got, err := l.Get(ctx, "run-abc")
	require.NoError(t, err)
	assert.Equal(t, rec.Source, got.Source)
	assert.Equal(t, rec.Model, got.Model)
	assert.Equal(t, rec.PlanID, got.PlanID)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, 8, got.OutputRows)
	assert.Equal(t, rec.Steps, got.Steps)
}

func TestGetByPrefix(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	now := time.Now().UTC()
	_, err := l.Record(ctx, sampleRun("aaaa-1111", now))
	require.NoError(t, err)
	_, err = l.Record(ctx, sampleRun("aaaa-2222", now))
	require.NoError(t, err)

	got, err := l.Get(ctx, "aaaa-2")
	require.NoError(t, err)
	assert.Equal(t, "aaaa-2222", got.ID)

	_, err = l.Get(ctx, "aaaa")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")

	_, err = l.Get(ctx, "zzzz")
	require.ErrorIs(t, err, ledger.ErrRunNotFound)
}

func TestRecordGeneratesID(t *testing.T) {
	l := openLedger(t)
	id, err := l.Record(context.Background(), sampleRun("", time.Now()))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestListNewestFirst(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		_, err := l.Record(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	runs, err := l.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "third", runs[0].ID)
	assert.Equal(t, "second", runs[1].ID)
	assert.Equal(t, 2, runs[0].Steps)
	assert.Equal(t, 1, runs[0].Applied)
	assert.Equal(t, 1, runs[0].Failed)

	all, err := l.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteCascades(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	_, err := l.Record(ctx, sampleRun("gone", time.Now()))
	require.NoError(t, err)

	require.NoError(t, l.Delete(ctx, "gone"))
	_, err = l.Get(ctx, "gone")
	require.ErrorIs(t, err, ledger.ErrRunNotFound)
	require.ErrorIs(t, l.Delete(ctx, "gone"), ledger.ErrRunNotFound)

	// Re-recording the same ID works once its children are gone.
	_, err = l.Record(ctx, sampleRun("gone", time.Now()))
	require.NoError(t, err)
}

func TestDuplicateIDRollsBack(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	_, err := l.Record(ctx, sampleRun("dup", time.Now()))
	require.NoError(t, err)
	_, err = l.Record(ctx, sampleRun("dup", time.Now()))
	require.Error(t, err)

	runs, err := l.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestClosed(t *testing.T) {
	l, err := ledger.Open(filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	_, err = l.List(context.Background(), 1)
	require.ErrorIs(t, err, ledger.ErrClosed)
}

func TestFingerprint(t *testing.T) {
	a := table.MustFromColumns(table.Col("x", "1", "2"))
	b := table.MustFromColumns(table.Col("x", "1", "2"))
	c := table.MustFromColumns(table.Col("x", "1", "3"))

	fa, err := ledger.Fingerprint(a)
	require.NoError(t, err)
	fb, err := ledger.Fingerprint(b)
	require.NoError(t, err)
	fc, err := ledger.Fingerprint(c)
	require.NoError(t, err)

	assert.Len(t, fa, 64)
	assert.Equal(t, fa, fb)
	assert.NotEqual(t, fa, fc)
}
