// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package table

// ReadCSVLimit exposes the size-bounded reader with a small limit for tests.
var ReadCSVLimit = readCSV
