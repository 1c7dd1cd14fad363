// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package inbox watches a directory for new datasets and hands each one to
// a handler after its writes settle.
//
// Create and Write events for files table.ReadFile can load are debounced per
// path; once a file has been quiet for the debounce interval the handler runs
// once for it. Files are handled one at a time in arrival order. Outputs
// ending in .cleaned.csv are ignored so the out dir may equal the inbox.
package inbox
