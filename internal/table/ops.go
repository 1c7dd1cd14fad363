// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package table

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrNotNumeric is returned by numeric aggregations on non-numeric columns.
var ErrNotNumeric = errors.New("column is not numeric")

// =============================================================================
// TYPE CONVERSION
// =============================================================================

// ToNumeric converts a column to numbers in place. Values that cannot be
// parsed become missing.
func (t *Table) ToNumeric(name string) error {
	col, err := t.col(name)
	if err != nil {
		return err
	}
	for i, v := range col.Values {
		col.Values[i] = coerceNumber(v)
	}
	col.Dtype = settle(col.Values)
	return nil
}

func coerceNumber(v any) any {
	switch x := v.(type) {
	case int64, float64:
		return x
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, ok := ToFloat(s); ok {
			return f
		}
		return nil
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	default:
		return nil
	}
}

// AsType converts a column to dtype in place. Unlike ToNumeric it fails on
// the first value that cannot be converted and leaves the column untouched.
func (t *Table) AsType(name string, dtype Dtype) error {
	col, err := t.col(name)
	if err != nil {
		return err
	}
	out := make([]any, len(col.Values))
	for i, v := range col.Values {
		c, err := convertStrict(v, dtype)
		if err != nil {
			return err
		}
		out[i] = c
	}
	col.Values = out
	col.Dtype = dtype
	if dtype == Float64 {
		settle(col.Values)
	}
	return nil
}

func convertStrict(v any, dtype Dtype) (any, error) {
	switch dtype {
	case Object:
		if v == nil {
			return nil, nil
		}
		return FormatValue(v), nil
	case Float64:
		if v == nil {
			return nil, nil
		}
		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("could not convert string to float: '%s'", s)
			}
			return f, nil
		}
		if _, ok := v.(time.Time); ok {
			return nil, fmt.Errorf("cannot cast datetime to float64")
		}
		f, _ := ToFloat(v)
		return f, nil
	case Int64:
		switch x := v.(type) {
		case nil:
			return nil, errors.New("cannot convert non-finite values (NA or inf) to integer")
		case int64:
			return x, nil
		case float64:
			if math.IsInf(x, 0) {
				return nil, errors.New("cannot convert non-finite values (NA or inf) to integer")
			}
			return int64(x), nil
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid literal for int() with base 10: '%s'", x)
			}
			return n, nil
		default:
			return nil, fmt.Errorf("cannot cast %T to int64", v)
		}
	case Bool:
		switch x := v.(type) {
		case nil:
			return true, nil
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case float64:
			return x != 0, nil
		case string:
			return x != "", nil
		default:
			return true, nil
		}
	case Datetime:
		return toTime(v, "")
	default:
		return nil, fmt.Errorf("data type %q not understood", dtype)
	}
}

// ToDatetime converts a column to datetimes in place. With coerce set,
// unparsable values become missing; otherwise the first one is an error.
func (t *Table) ToDatetime(name, layout string, coerce bool) error {
	col, err := t.col(name)
	if err != nil {
		return err
	}
	out := make([]any, len(col.Values))
	for i, v := range col.Values {
		ts, err := toTime(v, layout)
		if err != nil {
			if !coerce {
				return err
			}
			ts = nil
		}
		out[i] = ts
	}
	col.Values = out
	col.Dtype = Datetime
	return nil
}

func toTime(v any, layout string) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return x, nil
	case string:
		if IsNA(x) {
			return nil, nil
		}
		ts, ok := ParseTime(x, layout)
		if !ok {
			return nil, fmt.Errorf("unknown datetime string format, unable to parse: %s", x)
		}
		return ts, nil
	case int64:
		return time.Unix(0, x).UTC(), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to datetime", v)
	}
}

// =============================================================================
// MISSING VALUES
// =============================================================================

// DropNA returns a new table without rows that have a missing value in any
// of the subset columns, or in any column when subset is empty.
func (t *Table) DropNA(subset ...string) (*Table, error) {
	cols, err := t.subset(subset)
	if err != nil {
		return nil, err
	}
	return t.Filter(func(row int) (bool, error) {
		for _, col := range cols {
			if col.Values[row] == nil {
				return false, nil
			}
		}
		return true, nil
	})
}

// FillNA replaces missing values in a column.
func (t *Table) FillNA(name string, value any) error {
	col, err := t.col(name)
	if err != nil {
		return err
	}
	v, err := normalizeValue(value)
	if err != nil {
		return err
	}
	for i := range col.Values {
		if col.Values[i] == nil {
			col.Values[i] = v
		}
	}
	col.Dtype = settle(col.Values)
	return nil
}

// IsNull reports, per row, whether the column value is missing.
func (t *Table) IsNull(name string) ([]bool, error) {
	col, err := t.col(name)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(col.Values))
	for i, v := range col.Values {
		out[i] = v == nil
	}
	return out, nil
}

func (t *Table) subset(names []string) ([]*Column, error) {
	if len(names) == 0 {
		return t.columns, nil
	}
	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		col, err := t.col(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// =============================================================================
// AGGREGATES
// =============================================================================

func (t *Table) numbers(name string) ([]float64, error) {
	col, err := t.col(name)
	if err != nil {
		return nil, err
	}
	if !col.Dtype.IsNumeric() && col.Dtype != Bool {
		return nil, fmt.Errorf("%w: %q has dtype %s", ErrNotNumeric, name, col.Dtype)
	}
	vals := make([]float64, 0, len(col.Values))
	for _, v := range col.Values {
		if f, ok := ToFloat(v); ok {
			vals = append(vals, f)
		}
	}
	return vals, nil
}

// Mean returns the mean of the non-missing values. ok is false when there are none.
func (t *Table) Mean(name string) (mean float64, ok bool, err error) {
	vals, err := t.numbers(name)
	if err != nil || len(vals) == 0 {
		return 0, false, err
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals)), true, nil
}

// Median returns the median of the non-missing values. ok is false when there are none.
func (t *Table) Median(name string) (median float64, ok bool, err error) {
	vals, err := t.numbers(name)
	if err != nil || len(vals) == 0 {
		return 0, false, err
	}
	sort.Float64s(vals)
	return quantile(vals, 0.5), true, nil
}

func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// Mode returns the most frequent non-missing value. Ties go to the value
// seen first. The result is nil for an all-missing column.
func (t *Table) Mode(name string) (any, error) {
	col, err := t.col(name)
	if err != nil {
		return nil, err
	}
	counts := make(map[any]int)
	var best any
	bestCount := 0
	for _, v := range col.Values {
		if v == nil {
			continue
		}
		key := v
		if ts, ok := v.(time.Time); ok {
			key = ts.UnixNano()
		}
		counts[key]++
		if counts[key] > bestCount {
			best, bestCount = v, counts[key]
		}
	}
	return best, nil
}

// =============================================================================
// VALUE TRANSFORMS
// =============================================================================

// MapStrings applies fn to every string value in a column. Other values are left as they are.
func (t *Table) MapStrings(name string, fn func(string) string) error {
	col, err := t.col(name)
	if err != nil {
		return err
	}
	for i, v := range col.Values {
		if s, ok := v.(string); ok {
			col.Values[i] = fn(s)
		}
	}
	return nil
}

// Apply replaces every value in a column with fn(value).
func (t *Table) Apply(name string, fn func(any) (any, error)) error {
	col, err := t.col(name)
	if err != nil {
		return err
	}
	out := make([]any, len(col.Values))
	for i, v := range col.Values {
		r, err := fn(v)
		if err != nil {
			return err
		}
		if out[i], err = normalizeValue(r); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	col.Values = out
	col.Dtype = settle(out)
	return nil
}

// Replace substitutes every value equal to old with repl. It returns the
// number of cells changed.
func (t *Table) Replace(name string, old, repl any) (int, error) {
	col, err := t.col(name)
	if err != nil {
		return 0, err
	}
	o, err := normalizeValue(old)
	if err != nil {
		return 0, err
	}
	r, err := normalizeValue(repl)
	if err != nil {
		return 0, err
	}
	n := 0
	for i, v := range col.Values {
		if looseEqual(v, o) {
			col.Values[i] = r
			n++
		}
	}
	if n > 0 {
		col.Dtype = settle(col.Values)
	}
	return n, nil
}

// looseEqual compares cells, treating int64 and float64 with the same value as equal.
func looseEqual(a, b any) bool {
	if valuesEqual(a, b) {
		return true
	}
	fa, okA := a.(float64)
	ib, okB := b.(int64)
	if okA && okB {
		return fa == float64(ib)
	}
	ia, okA := a.(int64)
	fb, okB := b.(float64)
	if okA && okB {
		return float64(ia) == fb
	}
	return false
}

// =============================================================================
// ROW OPERATIONS
// =============================================================================

// Filter returns a new table with the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) (bool, error)) (*Table, error) {
	rows := make([]int, 0, t.rows)
	for r := 0; r < t.rows; r++ {
		ok, err := keep(r)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, r)
		}
	}
	return t.SelectRows(rows)
}

// DropDuplicates returns a new table keeping the first occurrence of each
// distinct row, compared on subset columns or all columns.
func (t *Table) DropDuplicates(subset ...string) (*Table, error) {
	cols, err := t.subset(subset)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, t.rows)
	var b strings.Builder
	return t.Filter(func(row int) (bool, error) {
		b.Reset()
		for _, col := range cols {
			v := col.Values[row]
			fmt.Fprintf(&b, "%T:%s\x1f", v, FormatValue(v))
		}
		key := b.String()
		if seen[key] {
			return false, nil
		}
		seen[key] = true
		return true, nil
	})
}
