// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completion provides the text-completion backends used by the planner
// and the code synthesizer.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// MaxResponseSize bounds the response body read from any backend.
const MaxResponseSize = 10 * 1024 * 1024

// DefaultTimeout is used when a backend is configured without a timeout.
const DefaultTimeout = 60 * time.Second

// =============================================================================
// SERVICE
// =============================================================================

// Request is a single completion request.
type Request struct {
	// Model overrides the backend's default model when set
	Model string

	// Prompt is the user message
	Prompt string

	// System is an optional system message
	System string

	// JSON asks the backend to constrain output to a single JSON object
	JSON bool

	// Temperature is left to the backend default when nil
	Temperature *float64
}

// Temp returns a pointer to t for use in Request.Temperature.
func Temp(t float64) *float64 {
	return &t
}

// Service turns a Request into generated text.
type Service interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f ServiceFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotConfigured
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeAuth
	ErrTypeRateLimited
	ErrTypeModelNotFound
	ErrTypeServer
	ErrTypeInvalidResponse
)

var errorTypeNames = map[ErrorType]string{
	ErrTypeUnknown:         "unknown",
	ErrTypeNotConfigured:   "not configured",
	ErrTypeConnection:      "connection",
	ErrTypeTimeout:         "timeout",
	ErrTypeAuth:            "auth",
	ErrTypeRateLimited:     "rate limited",
	ErrTypeModelNotFound:   "model not found",
	ErrTypeServer:          "server",
	ErrTypeInvalidResponse: "invalid response",
}

// String returns a short name for the error type.
func (t ErrorType) String() string {
	if name, ok := errorTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ErrorType(%d)", int(t))
}

// ClientError represents a failed completion call.
type ClientError struct {
	Type    ErrorType
	Status  int
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Type.String()
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches another *ClientError of the same type, so sentinels work with errors.Is.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return t == e || (t.Message == "" && t.Type == e.Type)
}

// Sentinel errors for errors.Is checks.
var (
	ErrNotConfigured = &ClientError{Type: ErrTypeNotConfigured}
	ErrConnection    = &ClientError{Type: ErrTypeConnection}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout}
	ErrAuth          = &ClientError{Type: ErrTypeAuth}
	ErrRateLimited   = &ClientError{Type: ErrTypeRateLimited}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound}
)

func errorType(err error) ErrorType {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrTypeUnknown
}

// IsTimeout reports whether err is a timeout.
func IsTimeout(err error) bool {
	return errorType(err) == ErrTypeTimeout
}

// IsRateLimited reports whether the backend rejected the call for rate.
func IsRateLimited(err error) bool {
	return errorType(err) == ErrTypeRateLimited
}

// IsAuth reports whether the backend rejected the credentials.
func IsAuth(err error) bool {
	return errorType(err) == ErrTypeAuth
}

// IsModelNotFound reports whether the requested model does not exist.
func IsModelNotFound(err error) bool {
	return errorType(err) == ErrTypeModelNotFound
}

// transportError classifies an error from http.Client.Do.
func transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	return &ClientError{Type: ErrTypeConnection, Message: "request failed", Cause: err}
}

// statusError maps an HTTP status to a ClientError.
func statusError(status int, message string) *ClientError {
	e := &ClientError{Status: status, Message: message}
	switch {
	case status == 401 || status == 403:
		e.Type = ErrTypeAuth
	case status == 404:
		e.Type = ErrTypeModelNotFound
	case status == 429:
		e.Type = ErrTypeRateLimited
	case status >= 500:
		e.Type = ErrTypeServer
	default:
		e.Type = ErrTypeInvalidResponse
	}
	if e.Message == "" {
		e.Message = e.Type.String()
	}
	return e
}
