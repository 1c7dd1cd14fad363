// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the tidyrun command line.
//
// Parse turns os.Args into a Command and Args; Run dispatches the command
// and maps its error to an exit code. Data commands share an App, which
// owns the configuration, the completion backend and the run ledger.
//
// # Commands
//
//   - plan: profile a dataset and print or save a cleaning plan
//   - clean: plan (or load a plan), execute it and write the cleaned CSV
//   - history: list, show and delete recorded runs
//   - session: interactive load/plan/run/save loop
//   - watch: clean every dataset dropped into an inbox directory
//   - config: show, get and set configuration values
//
// Every command accepts --json for machine-readable output.
package cli
