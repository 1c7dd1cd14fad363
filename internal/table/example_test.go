// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package table_test

import (
	"fmt"
	"strings"

	"github.com/jeranaias/tidyrun/internal/table"
)

// ExampleTable_Info shows the profile the planner sends to the model.
func ExampleTable_Info() {
	t, err := table.ReadCSV(strings.NewReader("Name,Age\nAnn,25\nBob,\nCy,30\n"))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(t.Info())
	fmt.Println(t.DtypesString())

	// Output:
	// RangeIndex: 3 entries, 0 to 2
	// Data columns (total 2 columns):
	//  #   Column  Non-Null Count  Dtype
	// ---  ------  --------------  -----
	//  0   Name    3 non-null      object
	//  1   Age     2 non-null      float64
	// dtypes: object(1), float64(1)
	// Name: object
	// Age: float64
}

// ExampleTable_ToNumeric coerces unparsable values to missing.
func ExampleTable_ToNumeric() {
	t := table.MustFromColumns(table.Col("Age", "25", "Unknown", "30"))
	if err := t.ToNumeric("Age"); err != nil {
		fmt.Println(err)
		return
	}
	col, _ := t.Column("Age")
	fmt.Println(col.Dtype, col.Values)

	// Output:
	// float64 [25 <nil> 30]
}
