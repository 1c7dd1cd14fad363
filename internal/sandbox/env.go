// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/jeranaias/tidyrun/internal/table"
)

// Defaults applied by New for zero Config values.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxCallStack = 512
)

// Generated code runs inside a function so top-level let/const never collide
// across attempts. The prefix shares the first line with the code.
const (
	scopePrefix = "(function () {"
	scopeSuffix = "\n})();"
)

// Config configures an Env.
type Config struct {
	// Timeout bounds a single Run
	Timeout time.Duration

	// MaxCallStack bounds JavaScript call depth
	MaxCallStack int

	// Logger receives console output at debug level
	Logger *slog.Logger
}

// Env is a persistent JavaScript execution environment.
//
// An Env is not meant for concurrent use; Run calls are serialized.
type Env struct {
	mu     sync.Mutex
	cfg    Config
	logger *slog.Logger
	vm     *goja.Runtime
	date   goja.Value
	closed bool

	// frames lives as long as the Env so frames kept in globals stay
	// usable in later runs; run tags each with the Run that created it.
	frames map[*goja.Object]frameRef
	run    int
}

type frameRef struct {
	table *table.Table
	run   int
}

// timeoutSignal is the interrupt value used when an attempt runs too long.
type timeoutSignal struct{}

// New creates an Env with df unbound and the helper globals installed.
func New(cfg Config) *Env {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxCallStack <= 0 {
		cfg.MaxCallStack = DefaultMaxCallStack
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(cfg.MaxCallStack)

	e := &Env{
		cfg:    cfg,
		logger: logger,
		vm:     vm,
		date:   vm.Get("Date"),
		frames: make(map[*goja.Object]frameRef),
	}
	e.installHelpers()
	return e
}

// Run executes code with df bound to a clone of t and returns the table df
// refers to afterwards. t itself is never modified.
func (e *Env) Run(ctx context.Context, t *table.Table, code string) (*table.Table, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.run++
	if err := e.vm.Set("df", e.frame(t.Clone())); err != nil {
		return nil, fmt.Errorf("bind df: %w", err)
	}

	vm := e.vm
	vm.ClearInterrupt()
	timer := time.AfterFunc(e.cfg.Timeout, func() { vm.Interrupt(timeoutSignal{}) })
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer func() {
		timer.Stop()
		stop()
		vm.ClearInterrupt()
	}()

	start := time.Now()
	if err := e.exec(code); err != nil {
		return nil, e.classify(err)
	}
	out, err := e.result()
	if err != nil {
		return nil, err
	}
	e.logger.Debug("code executed", "duration", time.Since(start), "rows", out.NumRows(), "cols", out.NumCols())
	return out, nil
}

// Close releases the runtime. Later Run calls return ErrClosed.
func (e *Env) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.frames = nil
	e.vm = nil
	return nil
}

func (e *Env) exec(code string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	_, err = e.vm.RunScript("step.js", scopePrefix+code+scopeSuffix)
	return err
}

// classify converts a goja failure into a *CodeError carrying the raw message.
func (e *Env) classify(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		switch v := interrupted.Value().(type) {
		case timeoutSignal:
			return &CodeError{
				Message: fmt.Sprintf("execution timeout after %s", e.cfg.Timeout),
				Err:     ErrLimitExceeded,
			}
		case error:
			return &CodeError{Message: v.Error(), Err: v}
		}
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		return &CodeError{Message: exceptionMessage(exception), Err: err}
	}

	var syntax *goja.CompilerSyntaxError
	if errors.As(err, &syntax) {
		line, col := syntaxLocation(syntax.Error())
		if line == 1 {
			col = max(col-len(scopePrefix), 1)
		}
		return &CodeError{Message: syntax.Error(), Line: line, Column: col, Err: err}
	}

	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "call stack") {
		return &CodeError{Message: msg, Err: ErrLimitExceeded}
	}
	return &CodeError{Message: msg, Err: err}
}

// exceptionMessage returns the thrown value's message. Plain Error and Go
// binding errors yield the bare message; other error classes keep their name.
func exceptionMessage(ex *goja.Exception) string {
	v := ex.Value()
	obj, ok := v.(*goja.Object)
	if !ok {
		if v == nil {
			return ex.Error()
		}
		return v.String()
	}
	msg := obj.Get("message")
	if msg == nil || goja.IsUndefined(msg) {
		return v.String()
	}
	name := obj.Get("name")
	if name != nil && !goja.IsUndefined(name) {
		if n := name.String(); n != "Error" && n != "GoError" && n != "" {
			return n + ": " + msg.String()
		}
	}
	return msg.String()
}

func (e *Env) result() (*table.Table, error) {
	v := e.vm.Get("df")
	if obj, ok := v.(*goja.Object); ok {
		if f, ok := e.frames[obj]; ok {
			// A frame from an earlier run is still reachable from JavaScript
			// and must not be shared with the committed table.
			if f.run != e.run {
				return f.table.Clone(), nil
			}
			return f.table, nil
		}
	}
	return nil, &CodeError{Message: "df is not a DataFrame after execution (got " + describe(v) + ")"}
}

func describe(v goja.Value) string {
	switch {
	case v == nil || goja.IsUndefined(v):
		return "undefined"
	case goja.IsNull(v):
		return "null"
	}
	s := v.String()
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return s
}
