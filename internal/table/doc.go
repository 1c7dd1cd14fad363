// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package table provides the in-memory labeled dataset that cleaning runs operate on.
//
// A Table is an ordered set of named, typed columns of equal length. Cells hold
// one of nil (missing), int64, float64, bool, string or time.Time. Column dtypes
// are inferred from their values and reported with pandas-style names so that
// prompts read the way a data engineer expects.
//
// # Key Types
//
//   - Table: the dataset, with schema introspection and mutation operations
//   - Column: a single named column with its values and inferred Dtype
//   - Dtype: int64, float64, bool, datetime64[ns] or object
//   - ColumnInfo: name, dtype and non-null count used for profiling
//
// # Usage
//
// Load a file, inspect it, and write it back out:
//
//	t, err := table.ReadFile("customers.csv")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(t.Info())
//	fmt.Println(t.HeadString(3))
//	err = t.WriteCSV(os.Stdout)
//
// # Copy Semantics
//
// Clone returns a deep copy. Transforming operations such as DropNA and Filter
// return new tables; column-level operations such as ToNumeric mutate in place.
package table
