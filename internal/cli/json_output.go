// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output for scripting.
//
// With --json every command writes exactly one JSONResponse to stdout;
// progress and human-readable messages go to stderr.

package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/tidyrun/internal/ledger"
	"github.com/jeranaias/tidyrun/internal/plan"
)

// JSONResponse is the standardized response format for all CLI commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data any `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC 3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// PlanData is returned by the plan command.
type PlanData struct {
	Source string     `json:"source"`
	Rows   int        `json:"rows"`
	Plan   *plan.Plan `json:"plan"`
	Saved  string     `json:"saved,omitempty"`
}

// CleanData is returned by the clean command.
type CleanData struct {
	RunID      string             `json:"run_id"`
	Source     string             `json:"source"`
	Output     string             `json:"output"`
	Exported   string             `json:"exported,omitempty"`
	InputRows  int                `json:"input_rows"`
	OutputRows int                `json:"output_rows"`
	Applied    int                `json:"applied"`
	Failed     int                `json:"failed"`
	DurationMs int64              `json:"duration_ms"`
	Steps      []plan.StepOutcome `json:"steps"`
}

// HistoryData is returned by history list.
type HistoryData struct {
	Runs []ledger.Summary `json:"runs"`
}

// VersionData represents the data returned by the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}
