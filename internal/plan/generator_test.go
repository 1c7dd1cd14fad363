// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tidyrun/internal/completion"
	"github.com/jeranaias/tidyrun/internal/plan"
	"github.com/jeranaias/tidyrun/internal/table"
)

func ages() *table.Table {
	return table.MustFromColumns(
		table.Col("Age", "25", "Unknown", "30"),
		table.Col("Salary", int64(100), int64(200), int64(300)),
	)
}

func TestPlannerSteps(t *testing.T) {
	svc := completion.NewScripted(`{"steps": ["Convert 'Age' to numeric, coercing errors", "Fill missing 'Age' values with median"]}`)
	res := plan.NewPlanner(svc, plan.WithPlannerModel("m")).Plan(context.Background(), ages())

	require.False(t, res.Failed(), res.Error)
	assert.False(t, res.Empty())
	assert.Equal(t, []string{"Convert 'Age' to numeric, coercing errors", "Fill missing 'Age' values with median"}, res.Steps)

	reqs := svc.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].JSON)
	assert.Equal(t, "m", reqs[0].Model)
	assert.Contains(t, reqs[0].Prompt, "Non-Null Count")
	assert.Contains(t, reqs[0].Prompt, "Unknown")
	assert.Contains(t, reqs[0].Prompt, `"USA" vs "usa"`)
}

func TestPlannerMalformedOutput(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not json", "Sure! Here is your plan: convert Age"},
		{"missing key", `{"plan": ["a"]}`},
		{"non-string step", `{"steps": [1, 2]}`},
		{"steps not a list", `{"steps": "convert Age"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := plan.NewPlanner(completion.NewScripted(tt.response)).Plan(context.Background(), ages())
			assert.True(t, res.Failed())
			assert.NotEmpty(t, res.Error)
			assert.Nil(t, res.Steps)
			assert.False(t, res.Empty())
		})
	}
}

func TestPlannerEmptySteps(t *testing.T) {
	res := plan.NewPlanner(completion.NewScripted(`{"steps": []}`)).Plan(context.Background(), ages())
	assert.False(t, res.Failed())
	assert.True(t, res.Empty())

	_, err := res.Plan("x.csv")
	require.ErrorIs(t, err, plan.ErrEmptyPlan)
}

func TestPlannerServiceError(t *testing.T) {
	svc := new(completion.Scripted).Then("", completion.ErrRateLimited)
	res := plan.NewPlanner(svc).Plan(context.Background(), ages())
	assert.True(t, res.Failed())
	assert.Nil(t, res.Steps)
}

func TestParseStepsFenced(t *testing.T) {
	steps, err := plan.ParseSteps("```json\n{\"steps\": [\"  Drop nulls in Email \", \"\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"Drop nulls in Email"}, steps)
}

func TestResultPlan(t *testing.T) {
	p, err := plan.Result{Steps: []string{"a", "b"}}.Plan("data.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "data.csv", p.Source)
	assert.Equal(t, 2, p.Len())
	assert.False(t, p.CreatedAt.IsZero())

	_, err = plan.Result{Error: "boom"}.Plan("data.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
