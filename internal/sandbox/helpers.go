// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sandbox

import (
	"math"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/jeranaias/tidyrun/internal/table"
)

// installHelpers binds the tidy helper module and console.
func (e *Env) installHelpers() {
	vm := e.vm

	tidy := vm.NewObject()
	_ = tidy.Set("isNull", func(call goja.FunctionCall) goja.Value {
		v := call.Argument(0)
		if missing(v) {
			return vm.ToValue(true)
		}
		if f, ok := v.Export().(float64); ok && math.IsNaN(f) {
			return vm.ToValue(true)
		}
		return vm.ToValue(false)
	})
	_ = tidy.Set("toNumber", func(call goja.FunctionCall) goja.Value {
		f, ok := table.ToFloat(fromJS(call.Argument(0)))
		if !ok {
			return goja.Null()
		}
		return vm.ToValue(f)
	})
	_ = tidy.Set("parseDate", func(call goja.FunctionCall) goja.Value {
		layout := ""
		if l := call.Argument(1); !missing(l) {
			layout = strftimeLayout(l.String())
		}
		switch x := fromJS(call.Argument(0)).(type) {
		case time.Time:
			return e.toJS(x)
		case string:
			if ts, ok := table.ParseTime(x, layout); ok {
				return e.toJS(ts)
			}
		}
		return goja.Null()
	})
	_ = vm.Set("tidy", tidy)

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		_ = console.Set(level, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			e.logger.Debug("console", "level", level, "msg", strings.Join(parts, " "))
			return goja.Undefined()
		})
	}
	_ = vm.Set("console", console)
}
