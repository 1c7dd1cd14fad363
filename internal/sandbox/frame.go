// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sandbox

import (
	"strings"
	"unicode"

	"github.com/dop251/goja"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/tidyrun/internal/table"
)

// normalizeText applies NFKC, trims and collapses inner whitespace runs.
func normalizeText(s string) string {
	return strings.Join(strings.FieldsFunc(norm.NFKC.String(s), unicode.IsSpace), " ")
}

// frame wraps t as a DataFrame object. Column-level methods modify t and
// return the same frame; row-level methods return a new frame.
func (e *Env) frame(t *table.Table) *goja.Object {
	vm := e.vm
	self := vm.NewObject()
	e.frames[self] = frameRef{table: t, run: e.run}

	def := func(name string, fn func(call goja.FunctionCall) goja.Value) {
		_ = self.Set(name, fn)
	}
	check := func(err error) {
		if err != nil {
			e.throw(err)
		}
	}
	// each applies fn to a single column or an array of columns.
	each := func(call goja.FunctionCall, method string, fn func(name string) error) goja.Value {
		cols := e.names(call.Argument(0), method)
		if len(cols) == 0 {
			e.typeError("%s(): missing argument %q", method, "column")
		}
		for _, c := range cols {
			check(fn(c))
		}
		return self
	}
	mapStrings := func(method string, fn func(string) string) {
		def(method, func(call goja.FunctionCall) goja.Value {
			return each(call, method, func(c string) error { return t.MapStrings(c, fn) })
		})
	}

	// Introspection

	def("columns", func(goja.FunctionCall) goja.Value {
		names := t.Columns()
		items := make([]any, len(names))
		for i, n := range names {
			items[i] = n
		}
		return vm.NewArray(items...)
	})
	def("dtypes", func(goja.FunctionCall) goja.Value {
		out := vm.NewObject()
		for _, info := range t.Schema() {
			_ = out.Set(info.Name, info.Dtype.String())
		}
		return out
	})
	def("shape", func(goja.FunctionCall) goja.Value {
		return vm.NewArray(t.NumRows(), t.NumCols())
	})
	def("len", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(t.NumRows())
	})
	def("info", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(t.Info())
	})
	def("toString", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(t.HeadString(5))
	})
	def("head", func(call goja.FunctionCall) goja.Value {
		return e.frame(t.Head(e.intArg(call, 0, 5)))
	})
	def("copy", func(goja.FunctionCall) goja.Value {
		return e.frame(t.Clone())
	})

	// Cell and column access

	def("column", func(call goja.FunctionCall) goja.Value {
		col, err := t.Column(e.str(call, 0, "column", "column"))
		check(err)
		return e.array(col.Values)
	})
	def("setColumn", func(call goja.FunctionCall) goja.Value {
		name := e.str(call, 0, "setColumn", "column")
		raw, ok := call.Argument(1).Export().([]any)
		if !ok {
			e.typeError("setColumn(): values must be an array")
		}
		values := make([]any, len(raw))
		for i, v := range raw {
			values[i] = cell(v)
		}
		check(t.SetColumn(name, values))
		return self
	})
	def("get", func(call goja.FunctionCall) goja.Value {
		v, err := t.Cell(e.intArg(call, 0, 0), e.str(call, 1, "get", "column"))
		check(err)
		return e.toJS(v)
	})
	def("set", func(call goja.FunctionCall) goja.Value {
		check(t.SetCell(e.intArg(call, 0, 0), e.str(call, 1, "set", "column"), fromJS(call.Argument(2))))
		return self
	})
	def("isnull", func(call goja.FunctionCall) goja.Value {
		mask, err := t.IsNull(e.str(call, 0, "isnull", "column"))
		check(err)
		items := make([]any, len(mask))
		for i, b := range mask {
			items[i] = b
		}
		return vm.NewArray(items...)
	})

	// Type conversion

	def("toNumeric", func(call goja.FunctionCall) goja.Value {
		return each(call, "toNumeric", t.ToNumeric)
	})
	def("astype", func(call goja.FunctionCall) goja.Value {
		dtype, err := table.ParseDtype(e.str(call, 1, "astype", "dtype"))
		check(err)
		return each(call, "astype", func(c string) error { return t.AsType(c, dtype) })
	})
	def("toDatetime", func(call goja.FunctionCall) goja.Value {
		layout, coerce := "", false
		switch opt := call.Argument(1).Export().(type) {
		case string:
			layout = opt
		case map[string]any:
			if f, ok := opt["format"].(string); ok {
				layout = f
			}
			coerce = opt["errors"] == "coerce"
		}
		layout = strftimeLayout(layout)
		return each(call, "toDatetime", func(c string) error { return t.ToDatetime(c, layout, coerce) })
	})

	// Missing values and aggregates

	def("dropna", func(call goja.FunctionCall) goja.Value {
		out, err := t.DropNA(e.names(call.Argument(0), "dropna")...)
		check(err)
		return e.frame(out)
	})
	def("fillna", func(call goja.FunctionCall) goja.Value {
		name := e.str(call, 0, "fillna", "column")
		check(t.FillNA(name, fromJS(call.Argument(1))))
		return self
	})
	def("median", func(call goja.FunctionCall) goja.Value {
		v, ok, err := t.Median(e.str(call, 0, "median", "column"))
		check(err)
		if !ok {
			return goja.Null()
		}
		return vm.ToValue(v)
	})
	def("mean", func(call goja.FunctionCall) goja.Value {
		v, ok, err := t.Mean(e.str(call, 0, "mean", "column"))
		check(err)
		if !ok {
			return goja.Null()
		}
		return vm.ToValue(v)
	})
	def("mode", func(call goja.FunctionCall) goja.Value {
		v, err := t.Mode(e.str(call, 0, "mode", "column"))
		check(err)
		return e.toJS(v)
	})

	// String cleanup

	// Casers are stateful, so each frame gets its own.
	mapStrings("strip", strings.TrimSpace)
	mapStrings("lower", cases.Lower(language.Und).String)
	mapStrings("upper", cases.Upper(language.Und).String)
	mapStrings("title", cases.Title(language.Und).String)
	mapStrings("normalize", normalizeText)

	def("replace", func(call goja.FunctionCall) goja.Value {
		name := e.str(call, 0, "replace", "column")
		_, err := t.Replace(name, fromJS(call.Argument(1)), fromJS(call.Argument(2)))
		check(err)
		return self
	})

	// Columns

	def("rename", func(call goja.FunctionCall) goja.Value {
		if mapping, ok := call.Argument(0).Export().(map[string]any); ok {
			for oldName, newName := range mapping {
				s, ok := newName.(string)
				if !ok {
					e.typeError("rename(): new name for %q must be a string", oldName)
				}
				check(t.RenameColumn(oldName, s))
			}
			return self
		}
		check(t.RenameColumn(e.str(call, 0, "rename", "old"), e.str(call, 1, "rename", "new")))
		return self
	})
	def("drop", func(call goja.FunctionCall) goja.Value {
		cols := e.names(call.Argument(0), "drop")
		if len(cols) == 0 {
			e.typeError("drop(): missing argument %q", "columns")
		}
		check(t.DropColumns(cols...))
		return self
	})

	// Row operations and callbacks

	def("dropDuplicates", func(call goja.FunctionCall) goja.Value {
		out, err := t.DropDuplicates(e.names(call.Argument(0), "dropDuplicates")...)
		check(err)
		return e.frame(out)
	})
	def("apply", func(call goja.FunctionCall) goja.Value {
		name := e.str(call, 0, "apply", "column")
		fn := e.function(call, 1, "apply")
		row := 0
		err := t.Apply(name, func(v any) (any, error) {
			r, err := fn(goja.Undefined(), e.toJS(v), vm.ToValue(row))
			row++
			if err != nil {
				return nil, err
			}
			return fromJS(r), nil
		})
		check(err)
		return self
	})
	def("filter", func(call goja.FunctionCall) goja.Value {
		fn := e.function(call, 0, "filter")
		out, err := t.Filter(func(row int) (bool, error) {
			r, err := fn(goja.Undefined(), e.rowObject(t, row), vm.ToValue(row))
			if err != nil {
				return false, err
			}
			return r.ToBoolean(), nil
		})
		check(err)
		return e.frame(out)
	})

	return self
}

// rowObject exposes one row as a plain object keyed by column name.
func (e *Env) rowObject(t *table.Table, row int) *goja.Object {
	obj := e.vm.NewObject()
	values, err := t.Row(row)
	if err != nil {
		e.throw(err)
	}
	for _, name := range t.Columns() {
		_ = obj.Set(name, e.toJS(values[name]))
	}
	return obj
}
