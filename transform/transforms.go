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

package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/aaronlmathis/starload/core"
)

// Package transform provides the projection transformers used to carve dimension and fact
// candidates out of raw source records, plus the coercion helpers that type them.
//
// All transformers return a new record; the input record is never modified.

// Select creates a transformer that selects only the specified fields from each record.
// A listed field missing from the input is carried as nil so every candidate has the same shape.
func Select(fields ...string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := make(core.Record, len(fields))
		for _, field := range fields {
			result[field] = record[field]
		}
		return result, nil
	})
}

// Rename creates a transformer that renames fields according to the provided mapping.
// Keys are original field names, values are new field names.
func Rename(mapping map[string]string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := make(core.Record, len(record))
		for key, value := range record {
			if newKey, exists := mapping[key]; exists {
				result[newKey] = value
			} else {
				result[key] = value
			}
		}
		return result, nil
	})
}

// AddField creates a transformer that adds a new field with a computed value to each record.
// The value is computed by the provided function, which receives the current record.
func AddField(field string, fn func(core.Record) interface{}) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := copyRecord(record)
		result[field] = fn(record)
		return result, nil
	})
}

// Concat creates a transformer that joins the string values of sources with sep into field.
// Nil sources are skipped; if every source is nil the field is nil.
func Concat(field, sep string, sources ...string) core.Transformer {
	return AddField(field, func(record core.Record) interface{} {
		parts := make([]string, 0, len(sources))
		for _, src := range sources {
			if s, ok := ToString(record[src]); ok && s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return nil
		}
		return strings.Join(parts, sep)
	})
}

// RemoveFields creates a transformer that removes the specified fields from each record.
func RemoveFields(fields ...string) core.Transformer {
	fieldsToRemove := make(map[string]bool, len(fields))
	for _, field := range fields {
		fieldsToRemove[field] = true
	}

	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := make(core.Record, len(record))
		for k, v := range record {
			if !fieldsToRemove[k] {
				result[k] = v
			}
		}
		return result, nil
	})
}

// TrimSpace creates a transformer that trims whitespace from the specified string fields.
// A field that trims to the empty string becomes nil.
func TrimSpace(fields ...string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := copyRecord(record)
		for _, field := range fields {
			if str, ok := record[field].(string); ok {
				if trimmed := strings.TrimSpace(str); trimmed != "" {
					result[field] = trimmed
				} else {
					result[field] = nil
				}
			}
		}
		return result, nil
	})
}

// CoercionFailureFunc is notified when a field value cannot be coerced.
type CoercionFailureFunc func(field string, value interface{}, err error)

// Coerce creates a transformer that converts fields to kind.
// With a nil onFailure the first failure aborts the record with an error. Otherwise the
// failing field is set to nil, onFailure is called and the record continues.
func Coerce(kind core.ColumnKind, onFailure CoercionFailureFunc, fields ...string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := copyRecord(record)
		for _, field := range fields {
			value, exists := record[field]
			if !exists || value == nil {
				continue
			}

			converted, err := CoerceValue(kind, value)
			if err != nil {
				if onFailure == nil {
					return nil, fmt.Errorf("failed to convert field %s: %w", field, err)
				}
				onFailure(field, value, err)
				result[field] = nil
				continue
			}
			result[field] = converted
		}
		return result, nil
	})
}

func copyRecord(record core.Record) core.Record {
	result := make(core.Record, len(record)+1)
	for k, v := range record {
		result[k] = v
	}
	return result
}
