// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the state of an interactive cleaning session.
//
// A Session owns the loaded dataset, the current plan and the cleaned
// result. Loading a new dataset clears the plan and the result; executing
// always starts from the loaded dataset, so a plan can be edited and rerun.
//
// # Usage
//
//	s := session.New(planner, run)
//	if err := s.Load("people.csv"); err != nil { ... }
//	p, err := s.Plan(ctx)
//	outcomes, err := s.Execute(ctx)
//	err = s.Save("people.cleaned.csv")
package session
