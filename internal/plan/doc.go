// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package plan produces cleaning plans for a table and executes them.
//
// # Key Types
//
//   - Planner: profiles a table and asks the model for a JSON list of steps
//   - Plan: ordered natural-language steps, stored as YAML plan files
//   - Executor: runs each step with bounded retries and error feedback
//   - Transformer: applies one step; CodeTransformer synthesizes and runs code
//   - StepOutcome: terminal Applied or Failed status with every attempt
//
// # Usage
//
// Plan and execute:
//
//	res := plan.NewPlanner(svc).Plan(ctx, t)
//	p, err := res.Plan("people.csv")
//
//	env := sandbox.New(sandbox.Config{})
//	defer env.Close()
//	exec := plan.NewExecutor(plan.NewCodeTransformer(codegen.New(svc), env))
//	cleaned, outcomes := exec.Run(ctx, t, p)
//
// # Retry Model
//
// Each attempt runs against a copy of the last committed table. On success
// the copy becomes the committed table; on failure the error message is
// passed to the next attempt. A step that fails MaxRetries times is marked
// Failed and the run moves on.
package plan
