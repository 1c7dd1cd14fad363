// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package table provides the in-memory labeled dataset that cleaning runs operate on.
package table

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrColumnNotFound is returned when an operation names a column that does not exist.
	ErrColumnNotFound = errors.New("column not found")

	// ErrDuplicateColumn is returned when a column name is used twice.
	ErrDuplicateColumn = errors.New("duplicate column")

	// ErrLengthMismatch is returned when column lengths disagree with the row count.
	ErrLengthMismatch = errors.New("length mismatch")

	// ErrRowOutOfRange is returned for row indices outside [0, NumRows).
	ErrRowOutOfRange = errors.New("row out of range")
)

// =============================================================================
// COLUMN
// =============================================================================

// Column is a single named column.
type Column struct {
	// Name is the column label
	Name string

	// Dtype is the inferred type of the non-missing values
	Dtype Dtype

	// Values holds one cell per row; nil marks a missing value
	Values []any
}

// NonNull returns the number of non-missing values.
func (c *Column) NonNull() int {
	n := 0
	for _, v := range c.Values {
		if v != nil {
			n++
		}
	}
	return n
}

func (c *Column) clone() *Column {
	values := make([]any, len(c.Values))
	copy(values, c.Values)
	return &Column{Name: c.Name, Dtype: c.Dtype, Values: values}
}

// ColumnInfo summarizes a column for profiling.
type ColumnInfo struct {
	Name    string `json:"name"`
	Dtype   Dtype  `json:"dtype"`
	NonNull int    `json:"non_null"`
}

// =============================================================================
// TABLE
// =============================================================================

// Table is a mutable two-dimensional dataset with named, typed columns.
//
// A Table is not safe for concurrent mutation.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New creates an empty table with the given column names and zero rows.
func New(names ...string) (*Table, error) {
	t := &Table{index: make(map[string]int, len(names))}
	for _, name := range names {
		if err := t.addColumn(&Column{Name: name, Dtype: Float64}); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// FromColumns builds a table from columns of equal length.
// Values are normalized and dtypes inferred.
func FromColumns(cols ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for i, col := range cols {
		if i == 0 {
			t.rows = len(col.Values)
		} else if len(col.Values) != t.rows {
			return nil, fmt.Errorf("%w: column %q has %d values, want %d",
				ErrLengthMismatch, col.Name, len(col.Values), t.rows)
		}
		values, err := normalizeValues(col.Values)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		if err := t.addColumn(&Column{Name: col.Name, Values: values, Dtype: settle(values)}); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustFromColumns is FromColumns that panics on error. Intended for tests and examples.
func MustFromColumns(cols ...*Column) *Table {
	t, err := FromColumns(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// Col is a convenience constructor for a Column.
func Col(name string, values ...any) *Column {
	return &Column{Name: name, Values: values}
}

func (t *Table) addColumn(col *Column) error {
	if _, exists := t.index[col.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, col.Name)
	}
	t.index[col.Name] = len(t.columns)
	t.columns = append(t.columns, col)
	return nil
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.columns))
	for i, col := range t.columns {
		t.index[col.Name] = i
	}
}

// =============================================================================
// INTROSPECTION
// =============================================================================

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	return t.rows
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int {
	return len(t.columns)
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = col.Name
	}
	return names
}

// HasColumn reports whether a column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) (*Column, error) {
	col, err := t.col(name)
	if err != nil {
		return nil, err
	}
	return col.clone(), nil
}

func (t *Table) col(name string) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return t.columns[i], nil
}

// Dtype returns the dtype of the named column.
func (t *Table) Dtype(name string) (Dtype, error) {
	col, err := t.col(name)
	if err != nil {
		return "", err
	}
	return col.Dtype, nil
}

// Schema returns name, dtype and non-null count for every column.
func (t *Table) Schema() []ColumnInfo {
	infos := make([]ColumnInfo, len(t.columns))
	for i, col := range t.columns {
		infos[i] = ColumnInfo{Name: col.Name, Dtype: col.Dtype, NonNull: col.NonNull()}
	}
	return infos
}

// Cell returns the value at row for the named column.
func (t *Table) Cell(row int, name string) (any, error) {
	col, err := t.col(name)
	if err != nil {
		return nil, err
	}
	if row < 0 || row >= t.rows {
		return nil, fmt.Errorf("%w: %d (rows: %d)", ErrRowOutOfRange, row, t.rows)
	}
	return col.Values[row], nil
}

// Row returns the values of a row keyed by column name.
func (t *Table) Row(row int) (map[string]any, error) {
	if row < 0 || row >= t.rows {
		return nil, fmt.Errorf("%w: %d (rows: %d)", ErrRowOutOfRange, row, t.rows)
	}
	out := make(map[string]any, len(t.columns))
	for _, col := range t.columns {
		out[col.Name] = col.Values[row]
	}
	return out, nil
}

// =============================================================================
// COPY AND COMPARISON
// =============================================================================

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{
		columns: make([]*Column, len(t.columns)),
		rows:    t.rows,
	}
	for i, col := range t.columns {
		out.columns[i] = col.clone()
	}
	out.reindex()
	return out
}

// Equal reports whether two tables have the same columns, dtypes and values.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.rows != o.rows || len(t.columns) != len(o.columns) {
		return false
	}
	for i, col := range t.columns {
		other := o.columns[i]
		if col.Name != other.Name || col.Dtype != other.Dtype {
			return false
		}
		for r := range col.Values {
			if !valuesEqual(col.Values[r], other.Values[r]) {
				return false
			}
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

// =============================================================================
// MUTATION
// =============================================================================

// SetColumn replaces or appends a column. On an empty table the row count
// is taken from values.
func (t *Table) SetColumn(name string, values []any) error {
	if len(t.columns) == 0 {
		t.rows = len(values)
	}
	if len(values) != t.rows {
		return fmt.Errorf("%w: %d values for %d rows", ErrLengthMismatch, len(values), t.rows)
	}
	normalized, err := normalizeValues(values)
	if err != nil {
		return fmt.Errorf("column %q: %w", name, err)
	}
	col := &Column{Name: name, Values: normalized, Dtype: settle(normalized)}
	if i, ok := t.index[name]; ok {
		t.columns[i] = col
		return nil
	}
	return t.addColumn(col)
}

// SetCell sets a single value and re-infers the column dtype.
func (t *Table) SetCell(row int, name string, value any) error {
	col, err := t.col(name)
	if err != nil {
		return err
	}
	if row < 0 || row >= t.rows {
		return fmt.Errorf("%w: %d (rows: %d)", ErrRowOutOfRange, row, t.rows)
	}
	v, err := normalizeValue(value)
	if err != nil {
		return err
	}
	col.Values[row] = v
	col.Dtype = settle(col.Values)
	return nil
}

// RenameColumn renames a column in place.
func (t *Table) RenameColumn(oldName, newName string) error {
	col, err := t.col(oldName)
	if err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}
	if _, exists := t.index[newName]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, newName)
	}
	col.Name = newName
	t.reindex()
	return nil
}

// DropColumns removes the named columns. All names must exist.
func (t *Table) DropColumns(names ...string) error {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		if _, err := t.col(name); err != nil {
			return err
		}
		drop[name] = true
	}
	kept := t.columns[:0]
	for _, col := range t.columns {
		if !drop[col.Name] {
			kept = append(kept, col)
		}
	}
	t.columns = kept
	t.reindex()
	if len(t.columns) == 0 {
		t.rows = 0
	}
	return nil
}

// SelectRows returns a new table containing the given rows in order.
func (t *Table) SelectRows(rows []int) (*Table, error) {
	out := &Table{columns: make([]*Column, len(t.columns)), rows: len(rows)}
	for i, col := range t.columns {
		values := make([]any, len(rows))
		for j, r := range rows {
			if r < 0 || r >= t.rows {
				return nil, fmt.Errorf("%w: %d (rows: %d)", ErrRowOutOfRange, r, t.rows)
			}
			values[j] = col.Values[r]
		}
		// Row selection never changes a column's dtype.
		out.columns[i] = &Column{Name: col.Name, Values: values, Dtype: col.Dtype}
	}
	out.reindex()
	return out, nil
}

// Head returns a new table with the first n rows.
func (t *Table) Head(n int) *Table {
	if n > t.rows {
		n = t.rows
	}
	if n < 0 {
		n = 0
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	out, _ := t.SelectRows(rows)
	return out
}
