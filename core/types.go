//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of starload.
//
// starload is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// starload is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with starload. If not, see https://www.gnu.org/licenses/.
//

package core

import "context"

// Package core defines the core types for starload.
//
// starload moves a flat order-level supply-chain extract into a star schema: four
// dimension tables and one fact table, fully reloaded on every run.
//
// This file contains the record, column and table types shared by readers, builders and writers.

// Record represents a single row flowing between stages.
// Each record is a map from column names to values; a nil value is SQL NULL.
type Record map[string]interface{}

// TransformFunc is a function adapter for the Transformer interface.
// Allows ordinary functions to be used as Transformers.
type TransformFunc func(ctx context.Context, record Record) (Record, error)

// Transform implements the Transformer interface for TransformFunc.
func (f TransformFunc) Transform(ctx context.Context, record Record) (Record, error) {
	return f(ctx, record)
}

// ColumnKind is the logical type of a warehouse column.
type ColumnKind int

const (
	KindString ColumnKind = iota
	KindInt
	KindFloat
	KindDecimal
	KindBool
	KindDate
)

// String returns the lowercase kind name.
func (k ColumnKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	default:
		return "string"
	}
}

// Column describes one column of a warehouse relation.
type Column struct {
	Name     string
	Kind     ColumnKind
	Nullable bool
}

// Table is a fully materialized relation ready to be persisted.
// Column order is the order used for INSERT/COPY statements and file exports.
type Table struct {
	Name    string
	Columns []Column
	Records []Record
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Len returns the number of rows in the table.
func (t *Table) Len() int {
	return len(t.Records)
}
