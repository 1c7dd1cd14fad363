// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/tidyrun/internal/table"
	"github.com/jeranaias/tidyrun/internal/util"
)

// =============================================================================
// SINK INTERFACE
// =============================================================================

// Object is one cleaned dataset to publish.
type Object struct {
	RunID string
	Name  string
	Table *table.Table

	// Report is an optional markdown run report stored next to the data
	Report []byte
}

// Sink publishes cleaned datasets.
type Sink interface {
	// Put stores obj and returns the location of the CSV.
	Put(ctx context.Context, obj Object) (string, error)
}

// =============================================================================
// FILE SINK
// =============================================================================

// FileSink writes <name>.cleaned.csv (and <name>.report.md) into Dir.
type FileSink struct {
	Dir string
}

// NewFileSink creates a sink writing into dir.
func NewFileSink(dir string) *FileSink {
	if dir == "" {
		dir = "."
	}
	return &FileSink{Dir: dir}
}

// Put implements Sink.
func (s *FileSink) Put(ctx context.Context, obj Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if obj.Table == nil {
		return "", fmt.Errorf("export %s: no table", obj.Name)
	}
	path := CleanedPath(s.Dir, obj.Name)
	if err := WriteCSVFile(path, obj.Table); err != nil {
		return "", err
	}
	if obj.Report != nil {
		if err := util.AtomicWriteFile(filepath.Join(s.Dir, ObjectName(obj.Name)+".report.md"), obj.Report, 0o644); err != nil {
			return "", fmt.Errorf("write report: %w", err)
		}
	}
	return path, nil
}

// CleanedPath returns the path FileSink uses for source inside dir.
func CleanedPath(dir, source string) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, ObjectName(source)+".cleaned.csv")
}

// WriteFile writes t to path atomically, as a workbook when path ends in
// .xlsx and as CSV otherwise.
func WriteFile(path string, t *table.Table) error {
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return WriteCSVFile(path, t)
	}
	err := util.AtomicWrite(path, 0o644, func(w io.Writer) error {
		return t.WriteXLSX(w)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteCSVFile writes t to path atomically.
func WriteCSVFile(path string, t *table.Table) error {
	err := util.AtomicWrite(path, 0o644, func(w io.Writer) error {
		return t.WriteCSV(w)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// ObjectName derives a safe base name from a source path: the directory and
// extension are dropped and characters that are invalid in file names or
// object keys are replaced.
func ObjectName(source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	const maxLen = 80
	if runes := []rune(base); len(runes) > maxLen {
		base = string(runes[:maxLen])
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	name := strings.Trim(b.String(), ".")
	if name == "" {
		return "dataset"
	}
	return name
}

// formatDuration formats a duration for reports.
func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := d.Seconds()
	if seconds < 60 {
		return fmt.Sprintf("%.2fs", seconds)
	}
	return fmt.Sprintf("%dm %ds", int(seconds)/60, int(seconds)%60)
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
