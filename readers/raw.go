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

package readers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aaronlmathis/starload/core"
)

// RawTable is the whole source extract held in memory: column names plus one record per data line.
// Records are never modified after loading.
type RawTable struct {
	Source  string
	Columns []string
	Records []core.Record
}

// Len returns the number of data rows.
func (t *RawTable) Len() int {
	return len(t.Records)
}

// HasColumn reports whether the header contains name.
func (t *RawTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Require returns a configuration error listing every column in names missing from the header.
func (t *RawTable) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if !t.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return core.NewStageError(core.KindConfiguration, "load_raw", t.Source,
		fmt.Errorf("source is missing required columns: %s", strings.Join(missing, ", ")))
}

// RawLoadOptions configures LoadRaw.
type RawLoadOptions struct {
	CSV []ReaderOptionCSV
	S3  S3Options
}

// RawLoadOption represents a configuration function for RawLoadOptions.
type RawLoadOption func(*RawLoadOptions)

// WithRawCSVOptions passes options through to the CSV reader.
func WithRawCSVOptions(opts ...ReaderOptionCSV) RawLoadOption {
	return func(o *RawLoadOptions) {
		o.CSV = append(o.CSV, opts...)
	}
}

// WithRawS3Options sets the S3 access options used for s3:// sources.
func WithRawS3Options(opts S3Options) RawLoadOption {
	return func(o *RawLoadOptions) {
		o.S3 = opts
	}
}

// LoadRaw reads the complete delimited extract at location into memory.
// Any failure to open or parse the source is returned as a read error.
func LoadRaw(ctx context.Context, location string, options ...RawLoadOption) (*RawTable, error) {
	var opts RawLoadOptions
	for _, opt := range options {
		opt(&opts)
	}

	src, err := OpenSource(ctx, location, opts.S3)
	if err != nil {
		return nil, core.NewStageError(core.KindRead, "load_raw", location, err)
	}

	reader, err := NewCSVReader(src, opts.CSV...)
	if err != nil {
		src.Close()
		return nil, core.NewStageError(core.KindRead, "load_raw", location, err)
	}
	defer reader.Close()

	return ReadAll(ctx, location, reader)
}

// ReadAll drains reader into a RawTable.
func ReadAll(ctx context.Context, source string, reader *CSVReader) (*RawTable, error) {
	table := &RawTable{
		Source:  source,
		Columns: reader.Headers(),
	}

	for {
		record, err := reader.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.NewStageError(core.KindRead, "load_raw", source, err)
		}
		table.Records = append(table.Records, record)
	}

	return table, nil
}
