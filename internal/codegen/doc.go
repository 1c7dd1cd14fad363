// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package codegen turns one natural-language cleaning step into JavaScript
// that runs against the sandbox's df binding.
//
// The Synthesizer builds a prompt from the current dtypes, a three-row sample,
// the step, fixed good/bad examples and, on a retry, the error raised by the
// previous attempt. It returns the model output with markdown fences removed.
// It never validates or runs the code.
package codegen
