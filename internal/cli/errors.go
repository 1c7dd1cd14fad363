// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error display and exit codes for tidyrun commands.
//
// Commands always return errors; Run decides how to display them and which
// exit code to use.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/tidyrun/internal/completion"
	"github.com/jeranaias/tidyrun/internal/config"
	"github.com/jeranaias/tidyrun/internal/ledger"
	"github.com/jeranaias/tidyrun/internal/plan"
	"github.com/jeranaias/tidyrun/internal/session"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates the completion backend rejected the credentials
	ExitAuthError = 4
	// ExitNetworkError indicates the completion backend could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a file, run or model was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitStepsFailed indicates the run finished but some steps failed
	ExitStepsFailed = 10
	// ExitInterrupted indicates the run was cancelled
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports invalid command usage.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// StepsFailedError reports a finished run with failed steps. The cleaned
// output is still written.
type StepsFailedError struct {
	Failed int
	Total  int
}

func (e *StepsFailedError) Error() string {
	return fmt.Sprintf("%d of %d steps failed", e.Failed, e.Total)
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes err to w, as a JSON error response in JSON mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse("", err).Print(os.Stdout)
		return
	}
	fmt.Fprintf(w, "%s %v\n", ErrorStyle.Render("Error:"), err)
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(w, DimStyle.Render(hint))
	}
}

func errorHint(err error) string {
	switch {
	case completion.IsAuth(err):
		return "Set an API key with 'tidyrun config set completion.api_key <key>' or GROQ_API_KEY."
	case errors.Is(err, completion.ErrNotConfigured):
		return "Set an API key with 'tidyrun config set completion.api_key <key>' or GROQ_API_KEY, or use --provider ollama."
	case completion.IsModelNotFound(err):
		return "Check the model name with --model or 'tidyrun config get completion.model'."
	case completion.IsRateLimited(err):
		return "Lower completion.requests_per_minute or wait before retrying."
	}
	return ""
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var steps *StepsFailedError
	var validation config.ValidateErrors
	var single config.ValidationError

	switch {
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &steps):
		return ExitStepsFailed
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &validation), errors.As(err, &single):
		return ExitConfigError
	case completion.IsAuth(err), errors.Is(err, completion.ErrNotConfigured):
		return ExitAuthError
	case completion.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.Is(err, completion.ErrConnection):
		return ExitNetworkError
	case errors.Is(err, os.ErrNotExist), errors.Is(err, ledger.ErrRunNotFound), completion.IsModelNotFound(err):
		return ExitNotFoundError
	case errors.Is(err, plan.ErrEmptyPlan), errors.Is(err, plan.ErrNoPlan),
		errors.Is(err, session.ErrNoDataset), errors.Is(err, session.ErrNoResult):
		return ExitUsageError
	}
	return ExitGeneralError
}
