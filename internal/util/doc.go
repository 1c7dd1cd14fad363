// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across tidyrun.
//
// # Key Functions
//
//   - AtomicWriteFile, AtomicWrite: crash-safe file writes with fsync and rename
//   - TruncateWidth: display-width aware truncation for terminal output
//   - FirstLine, Plural: report formatting
//
// # Usage
//
//	err := util.AtomicWrite(path, 0o644, func(w io.Writer) error {
//	    return t.WriteCSV(w)
//	})
package util
