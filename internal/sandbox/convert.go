// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sandbox

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// =============================================================================
// VALUE CONVERSION
// =============================================================================

// toJS converts a table cell to a JavaScript value. Missing cells are null
// and datetimes become Date objects.
func (e *Env) toJS(v any) goja.Value {
	switch x := v.(type) {
	case nil:
		return goja.Null()
	case time.Time:
		d, err := e.vm.New(e.date, e.vm.ToValue(x.UnixMilli()))
		if err != nil {
			return e.vm.ToValue(x.Format(time.RFC3339))
		}
		return d
	default:
		return e.vm.ToValue(x)
	}
}

// fromJS converts a JavaScript value to a table cell.
func fromJS(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return cell(v.Export())
}

// cell normalizes an exported JavaScript value; Dates are kept in UTC.
func cell(x any) any {
	if ts, ok := x.(time.Time); ok {
		return ts.UTC()
	}
	return x
}

func (e *Env) array(values []any) *goja.Object {
	items := make([]any, len(values))
	for i, v := range values {
		items[i] = e.toJS(v)
	}
	return e.vm.NewArray(items...)
}

// =============================================================================
// THROWING
// =============================================================================

// throw raises err inside the running script. Exceptions from JavaScript
// callbacks are rethrown unchanged; an interrupt is re-armed so it still
// stops the script.
func (e *Env) throw(err error) {
	var exception *goja.Exception
	if errors.As(err, &exception) {
		panic(exception)
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		e.vm.Interrupt(interrupted.Value())
	}
	panic(e.vm.NewGoError(err))
}

func (e *Env) typeError(format string, args ...any) {
	panic(e.vm.NewTypeError("%s", fmt.Sprintf(format, args...)))
}

// =============================================================================
// ARGUMENTS
// =============================================================================

func missing(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

// str returns argument i as a string, throwing a TypeError when absent.
func (e *Env) str(call goja.FunctionCall, i int, method, name string) string {
	v := call.Argument(i)
	if missing(v) {
		e.typeError("%s(): missing argument %q", method, name)
	}
	return v.String()
}

// intArg returns argument i as an integer, or def when absent.
func (e *Env) intArg(call goja.FunctionCall, i int, def int) int {
	v := call.Argument(i)
	if missing(v) {
		return def
	}
	return int(v.ToInteger())
}

// names accepts a single column name or an array of names. Absent means nil.
func (e *Env) names(v goja.Value, method string) []string {
	if missing(v) {
		return nil
	}
	switch x := v.Export().(type) {
	case string:
		return []string{x}
	case []any:
		out := make([]string, len(x))
		for i, item := range x {
			s, ok := item.(string)
			if !ok {
				e.typeError("%s(): column names must be strings, got %v", method, item)
			}
			out[i] = s
		}
		return out
	default:
		e.typeError("%s(): expected a column name or an array of names", method)
		return nil
	}
}

// function returns argument i as a callable, throwing a TypeError otherwise.
func (e *Env) function(call goja.FunctionCall, i int, method string) goja.Callable {
	fn, ok := goja.AssertFunction(call.Argument(i))
	if !ok {
		e.typeError("%s(): argument %d must be a function", method, i+1)
	}
	return fn
}

// strftimeLayout converts a strftime pattern such as "%Y-%m-%d" to a Go
// layout. Patterns without a '%' are taken as Go layouts already.
func strftimeLayout(pattern string) string {
	if !strings.Contains(pattern, "%") {
		return pattern
	}
	return strftime.Replace(pattern)
}

var strftime = strings.NewReplacer(
	"%Y", "2006",
	"%y", "06",
	"%m", "01",
	"%d", "02",
	"%H", "15",
	"%I", "03",
	"%M", "04",
	"%S", "05",
	"%p", "PM",
	"%b", "Jan",
	"%B", "January",
	"%a", "Mon",
	"%A", "Monday",
	"%z", "-0700",
	"%Z", "MST",
	"%f", "000000",
	"%%", "%",
)
