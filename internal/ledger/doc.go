// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ledger keeps a history of clean runs in SQLite.
//
// Each run stores its source, model, input and output fingerprints, and the
// outcome of every step together with the code and error of each attempt,
// so a failed step can be inspected after the fact.
//
// # Usage
//
//	l, err := ledger.Open(path)
//	defer l.Close()
//	id, err := l.Record(ctx, ledger.RunRecord{Source: "people.csv", Steps: outcomes})
//	runs, err := l.List(ctx, 20)
package ledger
