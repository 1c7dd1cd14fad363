// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sandbox runs generated JavaScript against a table.
//
// An Env owns one goja runtime for the length of a cleaning run. Only three
// globals are bound: df (the DataFrame under edit), tidy (value helpers) and
// console (routed to the debug log). There is no module loader, filesystem,
// network or process access.
//
// # Execution Model
//
// Run clones the committed table, binds the clone as df and executes the code
// inside a function scope, so declarations from one attempt never collide with
// the next. When the code finishes without throwing, whatever df then refers to
// is returned as the new table. A thrown error, a binding error or an exceeded
// limit returns a *CodeError and the committed table is left exactly as it was.
//
// Values assigned to globalThis persist for the rest of the run.
//
// # Limits
//
//   - Timeout: each Run is interrupted after Config.Timeout (ErrLimitExceeded)
//   - MaxCallStack: bounds recursion depth
//   - Context cancellation interrupts the running code
package sandbox
