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

package star

import (
	"context"
	"time"

	"github.com/aaronlmathis/starload/core"
	"github.com/aaronlmathis/starload/readers"
	"github.com/aaronlmathis/starload/transform"
)

// BuildDateDimension builds dim_date from the union of order and shipping dates.
// Timestamps are truncated to the calendar date and the rows are sorted ascending before keys
// are assigned. Values that do not parse as dates are counted as skipped.
func BuildDateDimension(ctx context.Context, raw *readers.RawTable, options ...BuildOption) (*Dimension, error) {
	spec := dimensionSpec{
		table:    TableDate,
		columns:  dateColumns,
		required: []string{SrcOrderDate, SrcShipDate},
		extract: func(ctx context.Context, record core.Record) ([]core.Record, error) {
			return []core.Record{
				dateRow(record[SrcOrderDate]),
				dateRow(record[SrcShipDate]),
			}, nil
		},
		naturalKey: func(candidate core.Record) (string, bool) {
			d, ok := candidate["full_date"].(time.Time)
			if !ok {
				return "", false
			}
			return d.Format(transform.DateKeyLayout), true
		},
		less: func(a, b core.Record) bool {
			return a["full_date"].(time.Time).Before(b["full_date"].(time.Time))
		},
	}

	return buildDimension(ctx, raw, spec, buildOptions(options))
}

// DateNaturalKey returns the dim_date lookup key for the date in field of a raw record.
func DateNaturalKey(record core.Record, field string) (string, bool) {
	if record[field] == nil {
		return "", false
	}
	key, err := transform.DateKey(record[field])
	if err != nil {
		return "", false
	}
	return key, true
}

// dateRow derives the calendar attributes of a source timestamp.
// An unparseable value yields a row with a nil full_date.
func dateRow(value interface{}) core.Record {
	if value == nil {
		return core.Record{"full_date": nil}
	}
	d, err := transform.ParseDate(value)
	if err != nil {
		return core.Record{"full_date": nil}
	}

	weekday := d.Weekday()
	return core.Record{
		"full_date":    d,
		"day_of_week":  weekday.String(),
		"day_of_month": int64(d.Day()),
		"month":        int64(d.Month()),
		"month_name":   d.Month().String(),
		"quarter":      int64((int(d.Month())-1)/3 + 1),
		"year":         int64(d.Year()),
		"is_weekend":   weekday == time.Saturday || weekday == time.Sunday,
	}
}
