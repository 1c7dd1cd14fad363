// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tidyrun/internal/plan"
)

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans", "people.yaml")
	p := &plan.Plan{
		ID:        "6f1c",
		Source:    "people.csv",
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Steps:     []string{"Convert 'Age' to numeric", "Drop rows where 'Email' is missing"},
	}
	require.NoError(t, plan.SaveFile(path, p))

	got, err := plan.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Source, got.Source)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, p.Steps, got.Steps)
}

func TestUnmarshalHandWritten(t *testing.T) {
	p, err := plan.Unmarshal([]byte("steps:\n  - Strip whitespace in 'Country'\n  - \"  \"\n  - Lowercase 'Country'\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Strip whitespace in 'Country'", "Lowercase 'Country'"}, p.Steps)
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestUnmarshalRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"no steps", "id: x\nsteps: []\n", plan.ErrEmptyPlan},
		{"blank steps", "steps:\n  - \"\"\n", plan.ErrEmptyPlan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := plan.Unmarshal([]byte(tt.data))
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err := plan.Unmarshal([]byte("stepz:\n  - a\n"))
	require.Error(t, err, "unknown fields are rejected")
}

func TestMarshalEmptyPlan(t *testing.T) {
	_, err := plan.Marshal(&plan.Plan{})
	require.ErrorIs(t, err, plan.ErrEmptyPlan)
	_, err = plan.Marshal(nil)
	require.ErrorIs(t, err, plan.ErrNoPlan)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := plan.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
