// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tidyrun/internal/completion"
)

func TestREPLWorkflow(t *testing.T) {
	app, _ := testApp(t, completion.NewScripted(lowerPlan, lowerCode))
	r := newREPL(app)
	ctx := context.Background()
	src := writeDataset(t)

	var out bytes.Buffer
	step := func(line string) string {
		t.Helper()
		out.Reset()
		assert.False(t, r.exec(ctx, line, &out), line)
		return out.String()
	}

	assert.Contains(t, step("run"), "no dataset loaded")
	assert.Contains(t, step("load "+src), "loaded")
	assert.Contains(t, step("show"), "ANN")
	assert.Contains(t, step("show result"), "no cleaned result")
	assert.Contains(t, step("plan"), "Lowercase the Name column")
	assert.Contains(t, step("show plan"), "Lowercase the Name column")
	assert.Contains(t, step("run"), "1 applied, 0 failed")
	assert.Contains(t, step("show result"), "ann")
	assert.Contains(t, step("show status"), "people.csv")

	saved := filepath.Join(t.TempDir(), "saved.csv")
	assert.Contains(t, step("save "+saved), "wrote 2 rows")
	assert.Equal(t, cleanedCSV, readFile(t, saved))

	assert.Contains(t, step("save"), "people.cleaned.csv")
	assert.Equal(t, cleanedCSV, readFile(t, filepath.Join(filepath.Dir(src), "people.cleaned.csv")))

	assert.Contains(t, step("reset"), "session cleared")
	assert.Contains(t, step("show"), "no dataset loaded")
}

func TestREPLCommands(t *testing.T) {
	app, _ := testApp(t, completion.NewScripted())
	r := newREPL(app)
	ctx := context.Background()
	var out bytes.Buffer

	assert.False(t, r.exec(ctx, "   ", &out))
	assert.Empty(t, out.String())

	assert.False(t, r.exec(ctx, "help", &out))
	assert.Contains(t, out.String(), "load <file>")

	out.Reset()
	assert.False(t, r.exec(ctx, "frobnicate", &out))
	assert.Contains(t, out.String(), `unknown command "frobnicate"`)

	out.Reset()
	assert.False(t, r.exec(ctx, "load", &out))
	assert.Contains(t, out.String(), "usage: load <file>")

	out.Reset()
	assert.False(t, r.exec(ctx, "show everything", &out))
	assert.Contains(t, out.String(), "show what?")

	for _, quit := range []string{"quit", "exit", "Q"} {
		assert.True(t, r.exec(ctx, quit, &out), quit)
	}
}

func TestREPLPlanFailureKeepsDataset(t *testing.T) {
	app, _ := testApp(t, completion.NewScripted(`{"steps": []}`))
	r := newREPL(app)
	ctx := context.Background()
	var out bytes.Buffer

	require.False(t, r.exec(ctx, "load "+writeDataset(t), &out))
	out.Reset()
	r.exec(ctx, "plan", &out)
	assert.Contains(t, out.String(), "plan has no steps")

	out.Reset()
	r.exec(ctx, "show", &out)
	assert.Contains(t, out.String(), "Bob")
}
