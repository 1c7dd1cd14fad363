// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package table

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// maxCellWidth truncates long cells in previews.
const maxCellWidth = 24

// Info renders a schema summary in the shape of pandas DataFrame.info().
func (t *Table) Info() string {
	var b strings.Builder
	fmt.Fprintf(&b, "RangeIndex: %d entries, 0 to %d\n", t.rows, max(t.rows-1, 0))
	fmt.Fprintf(&b, "Data columns (total %d columns):\n", len(t.columns))

	nameW := runewidth.StringWidth("Column")
	for _, col := range t.columns {
		nameW = max(nameW, runewidth.StringWidth(col.Name))
	}
	fmt.Fprintf(&b, " #   %s  Non-Null Count  Dtype\n", runewidth.FillRight("Column", nameW))
	fmt.Fprintf(&b, "---  %s  --------------  -----\n", strings.Repeat("-", nameW))

	counts := make(map[Dtype]int)
	var order []Dtype
	for i, col := range t.columns {
		nonNull := fmt.Sprintf("%d non-null", col.NonNull())
		fmt.Fprintf(&b, " %-3d %s  %-14s  %s\n", i, runewidth.FillRight(col.Name, nameW), nonNull, col.Dtype)
		if counts[col.Dtype] == 0 {
			order = append(order, col.Dtype)
		}
		counts[col.Dtype]++
	}
	parts := make([]string, len(order))
	for i, d := range order {
		parts[i] = fmt.Sprintf("%s(%d)", d, counts[d])
	}
	fmt.Fprintf(&b, "dtypes: %s", strings.Join(parts, ", "))
	return b.String()
}

// DtypesString lists one "name: dtype" line per column.
func (t *Table) DtypesString() string {
	lines := make([]string, len(t.columns))
	for i, col := range t.columns {
		lines[i] = fmt.Sprintf("%s: %s", col.Name, col.Dtype)
	}
	return strings.Join(lines, "\n")
}

// HeadString renders the first n rows as an aligned text grid with a row index.
func (t *Table) HeadString(n int) string {
	n = min(max(n, 0), t.rows)
	cells := make([][]string, n+1)
	cells[0] = append([]string{""}, t.Columns()...)
	for r := 0; r < n; r++ {
		row := make([]string, 0, len(t.columns)+1)
		row = append(row, strconv.Itoa(r))
		for _, col := range t.columns {
			row = append(row, runewidth.Truncate(displayValue(col.Values[r], col.Dtype), maxCellWidth, "..."))
		}
		cells[r+1] = row
	}

	widths := make([]int, len(cells[0]))
	for _, row := range cells {
		for c, cell := range row {
			widths[c] = max(widths[c], runewidth.StringWidth(cell))
		}
	}

	var b strings.Builder
	for i, row := range cells {
		for c, cell := range row {
			if c > 0 {
				b.WriteString("  ")
			}
			if c == 0 {
				b.WriteString(runewidth.FillRight(cell, widths[c]))
			} else {
				b.WriteString(runewidth.FillLeft(cell, widths[c]))
			}
		}
		if i < len(cells)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// String implements fmt.Stringer with a short preview.
func (t *Table) String() string {
	return fmt.Sprintf("Table(%d rows x %d columns)\n%s", t.rows, len(t.columns), t.HeadString(5))
}
