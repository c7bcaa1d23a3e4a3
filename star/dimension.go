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
	"fmt"
	"sort"
	"strings"

	"github.com/aaronlmathis/starload/core"
	"github.com/aaronlmathis/starload/readers"
	"github.com/aaronlmathis/starload/transform"
)

// Package star builds the dimension and fact tables of the supply-chain star schema.
//
// Every builder reads the same immutable RawTable. Dimensions project their source columns,
// drop duplicate rows, assign dense surrogate keys from 1 and publish a KeyMap from natural key
// to surrogate key. The fact builder resolves its foreign keys through those maps.

// Dimension is a built dimension table together with its natural-key lookup.
type Dimension struct {
	Table *core.Table
	Keys  *KeyMap
	Stats DimensionStats
}

// DimensionStats describes what a dimension build kept and dropped.
type DimensionStats struct {
	Candidates  int      // projected candidate rows
	Duplicates  int      // candidates equal to an earlier row
	Skipped     int      // candidates without a usable natural key
	Drifted     int      // variants dropped by DriftFirstWins
	DriftedKeys []string // natural keys that arrived with differing attributes
}

// BuildOptions configures dimension builds.
type BuildOptions struct {
	DriftPolicy DriftPolicy
}

// BuildOption represents a configuration function for BuildOptions.
type BuildOption func(*BuildOptions)

// WithDriftPolicy selects how differing attributes under one natural key are handled.
func WithDriftPolicy(policy DriftPolicy) BuildOption {
	return func(o *BuildOptions) {
		o.DriftPolicy = policy
	}
}

func buildOptions(options []BuildOption) BuildOptions {
	opts := BuildOptions{DriftPolicy: DriftFirstWins}
	for _, opt := range options {
		opt(&opts)
	}
	return opts
}

// dimensionSpec describes one dimension for the generic builder.
type dimensionSpec struct {
	table    string
	columns  []core.Column // surrogate key first
	required []string

	// extract turns one raw record into zero or more candidate rows.
	extract func(ctx context.Context, record core.Record) ([]core.Record, error)
	// naturalKey returns the lookup key of a candidate, or false when it has none.
	naturalKey func(candidate core.Record) (string, bool)
	// less orders the deduplicated rows before key assignment; nil keeps first-seen order.
	less func(a, b core.Record) bool
	// drift enables the drift policy; off for dimensions whose attributes are their key.
	drift bool
}

// project adapts a transformer chain into a single-candidate extractor.
func project(transformers ...core.Transformer) func(context.Context, core.Record) ([]core.Record, error) {
	return func(ctx context.Context, record core.Record) ([]core.Record, error) {
		candidate, err := core.Chain(ctx, record, transformers...)
		if err != nil {
			return nil, err
		}
		return []core.Record{candidate}, nil
	}
}

func buildDimension(ctx context.Context, raw *readers.RawTable, spec dimensionSpec, opts BuildOptions) (*Dimension, error) {
	stage := "build_" + spec.table

	if err := raw.Require(spec.required...); err != nil {
		return nil, err
	}

	keyColumn := spec.columns[0].Name
	attrColumns := spec.columns[1:]

	var stats DimensionStats
	var rows []core.Record
	var naturals []string

	seen := make(map[string]struct{})
	byKey := make(map[string]string) // natural key -> signature of the first row kept for it
	drifted := make(map[string]struct{})

	for _, record := range raw.Records {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		candidates, err := spec.extract(ctx, record)
		if err != nil {
			return nil, core.NewStageError(core.KindConfiguration, stage, spec.table, err)
		}

		for _, candidate := range candidates {
			stats.Candidates++

			natural, ok := spec.naturalKey(candidate)
			if !ok {
				stats.Skipped++
				continue
			}

			sig := rowSignature(candidate, attrColumns)
			if _, dup := seen[sig]; dup {
				stats.Duplicates++
				continue
			}

			if kept, exists := byKey[natural]; exists && kept != sig && spec.drift {
				if _, noted := drifted[natural]; !noted {
					drifted[natural] = struct{}{}
					stats.DriftedKeys = append(stats.DriftedKeys, natural)
				}

				switch opts.DriftPolicy {
				case DriftReject:
					return nil, core.NewStageError(core.KindConfiguration, stage, spec.table,
						fmt.Errorf("natural key %q has differing attributes across source rows", natural))
				case DriftKeepAll:
				default:
					stats.Drifted++
					continue
				}
			}

			seen[sig] = struct{}{}
			if _, exists := byKey[natural]; !exists {
				byKey[natural] = sig
			}
			rows = append(rows, candidate)
			naturals = append(naturals, natural)
		}
	}

	if spec.less != nil {
		idx := make([]int, len(rows))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(i, j int) bool { return spec.less(rows[idx[i]], rows[idx[j]]) })

		sortedRows := make([]core.Record, len(rows))
		sortedNaturals := make([]string, len(rows))
		for i, j := range idx {
			sortedRows[i] = rows[j]
			sortedNaturals[i] = naturals[j]
		}
		rows, naturals = sortedRows, sortedNaturals
	}

	keys := NewKeyMap(len(rows))
	records := make([]core.Record, len(rows))
	for i, candidate := range rows {
		surrogate := int64(i + 1)

		row := make(core.Record, len(spec.columns))
		row[keyColumn] = surrogate
		for _, col := range attrColumns {
			row[col.Name] = candidate[col.Name]
		}
		records[i] = row

		keys.Insert(naturals[i], surrogate)
	}

	return &Dimension{
		Table: &core.Table{
			Name:    spec.table,
			Columns: append([]core.Column(nil), spec.columns...),
			Records: records,
		},
		Keys:  keys,
		Stats: stats,
	}, nil
}

// rowSignature renders the attribute values of a candidate as a comparable string.
func rowSignature(candidate core.Record, columns []core.Column) string {
	var b strings.Builder
	for i, col := range columns {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		if s, ok := transform.ToString(candidate[col.Name]); ok {
			b.WriteByte('=')
			b.WriteString(s)
		} else {
			b.WriteByte('\x00')
		}
	}
	return b.String()
}

// compositeKey joins the string values of fields with "|". It reports false if any part is nil.
func compositeKey(record core.Record, fields ...string) (string, bool) {
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		s, ok := transform.ToString(record[field])
		if !ok {
			return "", false
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "|"), true
}

// trimmedKey returns the trimmed string value of field, or false when it is nil or blank.
func trimmedKey(record core.Record, field string) (string, bool) {
	s, ok := transform.ToString(record[field])
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
