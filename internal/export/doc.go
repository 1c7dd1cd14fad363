// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export publishes cleaned datasets and renders run reports.
//
// # Key Types
//
//   - Sink: destination for a cleaned table
//   - FileSink: atomic <name>.cleaned.csv files in a directory
//   - MinioSink: S3-compatible upload under cleaned/<run-id>/<name>.csv
//   - Run: input to the markdown run report
//
// # Usage
//
//	sink := export.NewFileSink("out")
//	path, err := sink.Put(ctx, export.Object{RunID: id, Name: "people.csv", Table: cleaned})
//
//	md := export.Report(export.Run{Source: "people.csv", Outcomes: outcomes},
//	    export.ReportOptions{IncludeCode: true})
package export
