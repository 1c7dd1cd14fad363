// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sandbox

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Sentinel errors for error classification.
var (
	// ErrCodeExecution matches every *CodeError.
	ErrCodeExecution = errors.New("code execution error")

	// ErrLimitExceeded indicates the attempt hit the timeout or the call stack limit.
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrClosed is returned by Run after Close.
	ErrClosed = errors.New("sandbox closed")
)

// CodeError is a failure raised while running generated code.
type CodeError struct {
	// Message is the raw error text, e.g. the message of a thrown Error.
	Message string

	// Line is the 1-based line of a syntax error, or zero when unknown.
	Line int

	// Column is the 1-based column of a syntax error, or zero when unknown.
	Column int

	// Err is the underlying error, if any.
	Err error
}

// Error returns the message, with the location when known.
func (e *CodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d, col %d)", e.Message, e.Line, e.Column)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *CodeError) Unwrap() error {
	return e.Err
}

// Is matches ErrCodeExecution.
func (e *CodeError) Is(target error) bool {
	return target == ErrCodeExecution
}

var linePattern = regexp.MustCompile(`Line (\d+):(\d+)`)

// syntaxLocation extracts "Line L:C" from a goja compiler message.
func syntaxLocation(msg string) (line, col int) {
	m := linePattern.FindStringSubmatch(msg)
	if m == nil {
		return 0, 0
	}
	line, _ = strconv.Atoi(m[1])
	col, _ = strconv.Atoi(m[2])
	return line, col
}
