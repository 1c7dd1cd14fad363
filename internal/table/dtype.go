// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// DTYPES
// =============================================================================

// Dtype names the type of a column's non-missing values.
type Dtype string

const (
	Int64    Dtype = "int64"
	Float64  Dtype = "float64"
	Bool     Dtype = "bool"
	Datetime Dtype = "datetime64[ns]"
	Object   Dtype = "object"
)

// String returns the dtype name.
func (d Dtype) String() string {
	return string(d)
}

// IsNumeric reports whether values of this dtype are numbers.
func (d Dtype) IsNumeric() bool {
	return d == Int64 || d == Float64
}

// ParseDtype maps user-facing spellings to a Dtype.
func ParseDtype(s string) (Dtype, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int", "int64", "integer":
		return Int64, nil
	case "float", "float64", "double", "number", "numeric":
		return Float64, nil
	case "bool", "boolean":
		return Bool, nil
	case "datetime", "datetime64", "datetime64[ns]", "date":
		return Datetime, nil
	case "str", "string", "object":
		return Object, nil
	default:
		return "", fmt.Errorf("data type %q not understood", s)
	}
}

// InferDtype reports the dtype a set of values would settle to.
// Missing values are ignored; an all-missing column is float64.
func InferDtype(values []any) Dtype {
	var ints, floats, bools, times, other int
	for _, v := range values {
		switch v.(type) {
		case nil:
		case int64:
			ints++
		case float64:
			floats++
		case bool:
			bools++
		case time.Time:
			times++
		default:
			other++
		}
	}
	nonNull := ints + floats + bools + times + other
	missing := len(values) - nonNull
	switch {
	case nonNull == 0:
		return Float64
	case ints == nonNull && missing == 0:
		return Int64
	case ints+floats == nonNull:
		return Float64
	case bools == nonNull && missing == 0:
		return Bool
	case times == nonNull:
		return Datetime
	default:
		return Object
	}
}

// settle infers the dtype and widens int64 cells to float64 when the column is float64.
func settle(values []any) Dtype {
	dtype := InferDtype(values)
	if dtype == Float64 {
		for i, v := range values {
			if n, ok := v.(int64); ok {
				values[i] = float64(n)
			}
		}
	}
	return dtype
}

// =============================================================================
// VALUE NORMALIZATION
// =============================================================================

func normalizeValues(values []any) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		n, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

// normalizeValue maps Go scalars onto the cell types a Table stores.
func normalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int64, bool, string:
		return x, nil
	case time.Time:
		return x, nil
	case float64:
		if math.IsNaN(x) {
			return nil, nil
		}
		return x, nil
	case float32:
		if math.IsNaN(float64(x)) {
			return nil, nil
		}
		return float64(x), nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return float64(x), nil
		}
		return int64(x), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return nil, fmt.Errorf("unsupported cell type %T", v)
	}
}

// =============================================================================
// PARSING
// =============================================================================

// naMarkers are the strings read as missing, matching pandas read_csv defaults.
var naMarkers = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true,
	"-1.#QNAN": true, "-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true,
	"<NA>": true, "N/A": true, "NA": true, "NULL": true, "NaN": true, "None": true,
	"n/a": true, "nan": true, "null": true,
}

// IsNA reports whether a raw string is a missing-value marker.
func IsNA(s string) bool {
	return naMarkers[strings.TrimSpace(s)]
}

// parseColumn converts raw strings into typed cells: int64, then float64,
// then bool, otherwise strings. Missing markers become nil.
func parseColumn(raw []string) ([]any, Dtype) {
	values := make([]any, len(raw))
	isInt, isFloat, isBool := true, true, true
	nonNull := 0
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if naMarkers[s] {
			continue
		}
		nonNull++
		if isInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			if _, ok := parseBool(s); !ok {
				isBool = false
			}
		}
	}

	for i, s := range raw {
		t := strings.TrimSpace(s)
		if naMarkers[t] {
			values[i] = nil
			continue
		}
		switch {
		case nonNull == 0:
			values[i] = nil
		case isInt:
			n, _ := strconv.ParseInt(t, 10, 64)
			values[i] = n
		case isFloat:
			f, _ := strconv.ParseFloat(t, 64)
			values[i] = f
		case isBool:
			b, _ := parseBool(t)
			values[i] = b
		default:
			values[i] = s
		}
	}
	return values, settle(values)
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "True", "true", "TRUE":
		return true, true
	case "False", "false", "FALSE":
		return false, true
	}
	return false, false
}

// dateLayouts are tried in order when coercing strings to datetimes.
var dateLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "2006-01-02 15:04", "2006-01-02 15:04:05",
	"01/02/2006", "1/2/2006", "02/01/2006", "1/2/2006 15:04", "1/2/2006 15:04:05",
	"Jan 2, 2006", "2 Jan 2006", "January 2, 2006", "02-Jan-2006",
}

// ParseTime parses a datetime using layout, or the known layouts when layout is empty.
func ParseTime(s, layout string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if layout != "" {
		t, err := time.Parse(layout, s)
		return t, err == nil
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ToFloat coerces a cell to float64. ok is false for missing or unparsable values.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, !math.IsNaN(x)
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(x)
		if naMarkers[s] {
			return 0, false
		}
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimPrefix(s, "$")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// =============================================================================
// FORMATTING
// =============================================================================

// FormatValue renders a cell for CSV output. Missing values are empty.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}

// displayValue renders a cell for prompts and terminal previews.
func displayValue(v any, dtype Dtype) string {
	if v == nil {
		if dtype == Datetime {
			return "NaT"
		}
		if dtype == Object {
			return "None"
		}
		return "NaN"
	}
	return FormatValue(v)
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
