// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sandbox

// APIReference documents the bindings for code generation prompts. It must
// stay in step with frame and installHelpers.
const APIReference = `df is a DataFrame. Methods marked (new) return a new DataFrame and must be
assigned back (df = df.dropna(["Email"])). All other mutating methods change df
in place and return df. c may be one column name or an array of names where noted.

Introspection:
  df.columns() -> string[]            df.dtypes() -> {column: dtype}
  df.shape() -> [rows, cols]          df.len() -> rows
  df.head(n = 5) (new)                df.copy() (new)
  df.info() -> string
Cells and columns:
  df.column(c) -> values[]            df.setColumn(c, values[])
  df.get(row, c) -> value             df.set(row, c, value)
  df.isnull(c) -> boolean[]
Types (dtype names: int64, float64, bool, datetime64[ns], object):
  df.toNumeric(c | c[])               unparsable values become null
  df.astype(c | c[], dtype)           throws on the first unconvertible value
  df.toDatetime(c | c[], format?)     format: "%Y-%m-%d" or {format, errors: "coerce"}
Missing values:
  df.dropna(c[]?) (new)               only rows missing a value in the listed columns
  df.fillna(c, value)
  df.median(c) / df.mean(c) -> number or null
  df.mode(c) -> most frequent value or null
Strings (c | c[]):
  df.strip(c)  df.lower(c)  df.upper(c)  df.title(c)  df.normalize(c)
  df.replace(c, oldValue, newValue)
Columns:
  df.rename(oldName, newName) or df.rename({old: new})
  df.drop(c | c[])
Rows:
  df.dropDuplicates(c[]?) (new)
  df.filter((row, i) => boolean) (new)   row is {column: value}
  df.apply(c, (value, i) => newValue)
Helpers:
  tidy.isNull(v)  tidy.toNumber(v) -> number or null  tidy.parseDate(v, format?) -> Date or null
  console.log(...)
Missing values are null. Dates are JavaScript Date objects.`
