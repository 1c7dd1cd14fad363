// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package table_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tidyrun/internal/table"
)

func TestReadCSVInfersDtypes(t *testing.T) {
	in := "id,name,age,score,active\n" +
		"1,Ann,25,1.5,true\n" +
		"2,Bob,Unknown,,false\n" +
		"3, Cy ,30,2,True\n"

	tbl, err := table.ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 3, tbl.NumRows())
	require.Equal(t, []string{"id", "name", "age", "score", "active"}, tbl.Columns())

	want := map[string]table.Dtype{
		"id":     table.Int64,
		"name":   table.Object,
		"age":    table.Object,
		"score":  table.Float64,
		"active": table.Bool,
	}
	for name, dtype := range want {
		got, err := tbl.Dtype(name)
		require.NoError(t, err)
		assert.Equal(t, dtype, got, name)
	}

	score, err := tbl.Column("score")
	require.NoError(t, err)
	assert.Equal(t, []any{1.5, nil, 2.0}, score.Values)

	name, err := tbl.Cell(2, "name")
	require.NoError(t, err)
	assert.Equal(t, " Cy ", name, "object values keep their whitespace")
}

func TestReadCSVSniffsDelimiter(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"semicolon", "a;b\n1;x\n"},
		{"tab", "a\tb\n1\tx\n"},
		{"pipe", "a|b\n1|x\n"},
		{"bom", "\xef\xbb\xbfa,b\n1,x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := table.ReadCSV(strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, tbl.Columns())
			v, err := tbl.Cell(0, "b")
			require.NoError(t, err)
			assert.Equal(t, "x", v)
		})
	}
}

func TestReadCSVHeaderCleanup(t *testing.T) {
	tbl, err := table.ReadCSV(strings.NewReader("a,a,\n1,2,3\n4,5\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a.1", "Unnamed: 2"}, tbl.Columns())

	v, err := tbl.Cell(1, "Unnamed: 2")
	require.NoError(t, err)
	assert.Nil(t, v, "short rows are padded with missing values")
}

func TestIntsWithMissingWidenToFloat(t *testing.T) {
	tbl := table.MustFromColumns(table.Col("n", 1, nil, 3))
	col, err := tbl.Column("n")
	require.NoError(t, err)
	assert.Equal(t, table.Float64, col.Dtype)
	assert.Equal(t, []any{1.0, nil, 3.0}, col.Values)
}

func TestToNumericCoercesErrors(t *testing.T) {
	tbl := table.MustFromColumns(table.Col("Age", "25", "Unknown", "30"))
	require.NoError(t, tbl.ToNumeric("Age"))

	col, err := tbl.Column("Age")
	require.NoError(t, err)
	assert.Equal(t, table.Float64, col.Dtype)
	assert.Equal(t, []any{25.0, nil, 30.0}, col.Values)
	assert.Equal(t, 2, col.NonNull())
}

func TestToNumericKeepsIntegers(t *testing.T) {
	tbl := table.MustFromColumns(table.Col("n", "1", "2"))
	require.NoError(t, tbl.ToNumeric("n"))
	dtype, err := tbl.Dtype("n")
	require.NoError(t, err)
	assert.Equal(t, table.Int64, dtype)
}

func TestAsTypeIsStrict(t *testing.T) {
	tbl := table.MustFromColumns(table.Col("Age", "25", "Unknown", "30"))
	before := tbl.Clone()

	err := tbl.AsType("Age", table.Float64)
	require.Error(t, err)
	assert.Equal(t, "could not convert string to float: 'Unknown'", err.Error())
	assert.True(t, tbl.Equal(before), "failed conversion leaves the column untouched")

	require.NoError(t, tbl.AsType("Age", table.Object))
	require.NoError(t, tbl.FillNA("Age", "0"))
}

func TestToDatetime(t *testing.T) {
	tbl := table.MustFromColumns(table.Col("d", "2024-01-15", "01/20/2024", "soon", nil))

	err := tbl.Clone().ToDatetime("d", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "soon")

	require.NoError(t, tbl.ToDatetime("d", "", true))
	col, err := tbl.Column("d")
	require.NoError(t, err)
	assert.Equal(t, table.Datetime, col.Dtype)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), col.Values[0])
	assert.Equal(t, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), col.Values[1])
	assert.Nil(t, col.Values[2])
	assert.Nil(t, col.Values[3])
}

func TestDropNASubset(t *testing.T) {
	email := []any{"a@x.io", nil, "c@x.io", "d@x.io", nil, "f@x.io", "g@x.io", "h@x.io", "i@x.io", "j@x.io"}
	phone := []any{nil, "2", "3", nil, "5", "6", "7", "8", "9", "10"}
	tbl := table.MustFromColumns(table.Col("Email", email...), table.Col("Phone", phone...))

	out, err := tbl.DropNA("Email")
	require.NoError(t, err)
	assert.Equal(t, 8, out.NumRows())

	nulls, err := out.IsNull("Email")
	require.NoError(t, err)
	assert.NotContains(t, nulls, true)

	phoneNulls, err := out.IsNull("Phone")
	require.NoError(t, err)
	assert.Contains(t, phoneNulls, true, "rows missing only Phone are kept")

	all, err := tbl.DropNA()
	require.NoError(t, err)
	assert.Equal(t, 6, all.NumRows())

	assert.Equal(t, 10, tbl.NumRows(), "DropNA does not mutate the receiver")

	_, err = tbl.DropNA("Missing")
	require.ErrorIs(t, err, table.ErrColumnNotFound)
}

func TestAggregatesAndFill(t *testing.T) {
	tbl := table.MustFromColumns(
		table.Col("x", 1, nil, 3, 10),
		table.Col("s", "a", "b", "b", nil),
	)

	median, ok, err := tbl.Median("x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3.0, median)

	mean, ok, err := tbl.Mean("x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 14.0/3.0, mean, 1e-9)

	_, _, err = tbl.Median("s")
	require.ErrorIs(t, err, table.ErrNotNumeric)

	mode, err := tbl.Mode("s")
	require.NoError(t, err)
	assert.Equal(t, "b", mode)

	require.NoError(t, tbl.FillNA("x", median))
	col, err := tbl.Column("x")
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 3.0, 3.0, 10.0}, col.Values)
	assert.Equal(t, table.Float64, col.Dtype)
}

func TestStringTransforms(t *testing.T) {
	tbl := table.MustFromColumns(table.Col("country", " USA", "usa ", "Canada", nil))
	require.NoError(t, tbl.MapStrings("country", strings.TrimSpace))
	require.NoError(t, tbl.MapStrings("country", strings.ToUpper))

	n, err := tbl.Replace("country", "CANADA", "CA")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	col, err := tbl.Column("country")
	require.NoError(t, err)
	assert.Equal(t, []any{"USA", "USA", "CA", nil}, col.Values)

	dedup, err := tbl.DropDuplicates("country")
	require.NoError(t, err)
	assert.Equal(t, 3, dedup.NumRows())
}

func TestApplyReinfersDtype(t *testing.T) {
	tbl := table.MustFromColumns(table.Col("p", "$1,200", "$30", "n/a"))
	require.NoError(t, tbl.Apply("p", func(v any) (any, error) {
		f, ok := table.ToFloat(v)
		if !ok {
			return nil, nil
		}
		return f, nil
	}))
	col, err := tbl.Column("p")
	require.NoError(t, err)
	assert.Equal(t, table.Float64, col.Dtype)
	assert.Equal(t, []any{1200.0, 30.0, nil}, col.Values)
}

func TestCloneIsIndependent(t *testing.T) {
	tbl := table.MustFromColumns(table.Col("a", 1, 2), table.Col("b", "x", "y"))
	clone := tbl.Clone()

	require.NoError(t, clone.SetCell(0, "a", 100))
	require.NoError(t, clone.RenameColumn("b", "B"))
	require.NoError(t, clone.DropColumns("a"))

	assert.Equal(t, []string{"a", "b"}, tbl.Columns())
	v, err := tbl.Cell(0, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	assert.False(t, tbl.Equal(clone))
}

func TestMutationErrors(t *testing.T) {
	tbl := table.MustFromColumns(table.Col("a", 1, 2))

	err := tbl.SetColumn("b", []any{1})
	require.ErrorIs(t, err, table.ErrLengthMismatch)

	err = tbl.RenameColumn("a", "a")
	require.NoError(t, err)

	require.NoError(t, tbl.SetColumn("b", []any{"x", "y"}))
	require.ErrorIs(t, tbl.RenameColumn("a", "b"), table.ErrDuplicateColumn)

	_, err = tbl.Cell(5, "a")
	require.ErrorIs(t, err, table.ErrRowOutOfRange)
}

func TestWriteCSV(t *testing.T) {
	tbl := table.MustFromColumns(
		table.Col("a", 1, 2),
		table.Col("b", "x, y", nil),
		table.Col("c", 1.5, nil),
		table.Col("d", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), nil),
	)
	out, err := tbl.CSV()
	require.NoError(t, err)
	assert.Equal(t, "a,b,c,d\n1,\"x, y\",1.5,2024-03-01\n2,,,\n", string(out))
}

func TestHeadString(t *testing.T) {
	tbl := table.MustFromColumns(
		table.Col("name", "Ann", nil),
		table.Col("age", 25, nil),
	)
	out := tbl.HeadString(5)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Ann")
	assert.Contains(t, lines[1], "25.0")
	assert.Contains(t, lines[2], "None")
	assert.Contains(t, lines[2], "NaN")
}

func TestInfo(t *testing.T) {
	tbl := table.MustFromColumns(table.Col("Email", "a", nil), table.Col("n", 1, 2))
	info := tbl.Info()
	assert.Contains(t, info, "RangeIndex: 2 entries, 0 to 1")
	assert.Contains(t, info, "1 non-null")
	assert.Contains(t, info, "dtypes: object(1), int64(1)")
}

func TestXLSXRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.xlsx")
	tbl := table.MustFromColumns(table.Col("name", "a", "b"), table.Col("n", 1, 2))
	var buf bytes.Buffer
	require.NoError(t, tbl.WriteXLSX(&buf))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got, err := table.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, tbl.Equal(got))
}

func TestReadFileUnsupported(t *testing.T) {
	_, err := table.ReadFile("data.parquet")
	require.ErrorIs(t, err, table.ErrUnsupportedFormat)
}

func TestReadCSVSizeLimit(t *testing.T) {
	in := "name,n\nann,1\nbob,2\n"
	limit := int64(len(in))

	got, err := table.ReadCSVLimit(iotest.HalfReader(strings.NewReader(in)), limit)
	require.NoError(t, err, "an input of exactly the limit is read whole")
	assert.Equal(t, 2, got.NumRows())

	_, err = table.ReadCSVLimit(iotest.HalfReader(strings.NewReader(in+"cy,3\n")), limit)
	require.ErrorIs(t, err, table.ErrInputTooLarge, "oversized input is rejected, not truncated")
	assert.Contains(t, err.Error(), "more than 19 bytes")
}

func TestSupported(t *testing.T) {
	for _, name := range []string{"a.csv", "a.TSV", "a.txt", "a.xlsx", "a.XLSM"} {
		assert.True(t, table.Supported(name), name)
	}
	for _, name := range []string{"a.parquet", "a.json", "noext"} {
		assert.False(t, table.Supported(name), name)
	}
}
