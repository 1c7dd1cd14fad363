// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// helpers.go - Small helpers shared across commands.

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// formatDurationShort formats a short duration string.
func formatDurationShort(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

// validateOutputPath checks that out can receive a cleaned CSV for source.
// The source dataset is never overwritten.
func validateOutputPath(source, out string) error {
	if out == "" {
		return nil
	}
	absOut, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	absSrc, err := filepath.Abs(source)
	if err == nil && absOut == absSrc {
		return &UsageError{Message: "--out must not be the input file"}
	}
	if info, err := os.Stat(absOut); err == nil && info.IsDir() {
		return &UsageError{Message: fmt.Sprintf("--out %s is a directory", out)}
	}
	return nil
}
