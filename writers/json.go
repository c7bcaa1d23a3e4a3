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

package writers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/aaronlmathis/starload/core"
)

// JSONWriterOptions configures JSON lines output.
type JSONWriterOptions struct {
	Columns []core.Column
}

// WriterOptionJSON is a functional option.
type WriterOptionJSON func(*JSONWriterOptions)

// WithJSONColumns fixes the key order and value formatting of each line.
func WithJSONColumns(columns []core.Column) WriterOptionJSON {
	return func(opts *JSONWriterOptions) {
		opts.Columns = append([]core.Column(nil), columns...)
	}
}

// JSONWriterStats holds JSON write statistics.
type JSONWriterStats struct {
	RecordsWritten  int64
	NullValueCounts map[string]int64
}

// JSONWriter implements DataSink for JSON lines files.
// Keys appear in column order; NULL is written as null.
type JSONWriter struct {
	writer  *bufio.Writer
	closer  io.Closer
	columns []core.Column
	stats   JSONWriterStats
	line    bytes.Buffer
	mu      sync.Mutex
}

// NewJSONWriter creates a new JSON writer for line-delimited JSON output
func NewJSONWriter(w io.WriteCloser, opts ...WriterOptionJSON) *JSONWriter {
	var options JSONWriterOptions
	for _, opt := range opts {
		opt(&options)
	}

	return &JSONWriter{
		writer:  bufio.NewWriter(w),
		closer:  w,
		columns: options.Columns,
		stats:   JSONWriterStats{NullValueCounts: make(map[string]int64)},
	}
}

// Write implements the DataSink interface
func (j *JSONWriter) Write(ctx context.Context, record core.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.columns) == 0 {
		names := make([]string, 0, len(record))
		for key := range record {
			names = append(names, key)
		}
		sort.Strings(names)
		for _, name := range names {
			j.columns = append(j.columns, core.Column{Name: name, Nullable: true})
		}
	}

	j.line.Reset()
	j.line.WriteByte('{')
	for i, col := range j.columns {
		if i > 0 {
			j.line.WriteByte(',')
		}
		key, _ := json.Marshal(col.Name)
		j.line.Write(key)
		j.line.WriteByte(':')

		value := record[col.Name]
		if value == nil {
			j.stats.NullValueCounts[col.Name]++
		}
		data, err := json.Marshal(jsonValue(col, value))
		if err != nil {
			return fmt.Errorf("failed to marshal field %s to JSON: %w", col.Name, err)
		}
		j.line.Write(data)
	}
	j.line.WriteString("}\n")

	if _, err := j.writer.Write(j.line.Bytes()); err != nil {
		return fmt.Errorf("failed to write JSON data: %w", err)
	}
	j.stats.RecordsWritten++

	return nil
}

// Flush implements the DataSink interface
func (j *JSONWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.writer.Flush()
}

// Close implements the DataSink interface
func (j *JSONWriter) Close() error {
	if err := j.Flush(); err != nil {
		return err
	}
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}

// Stats returns write statistics.
func (j *JSONWriter) Stats() JSONWriterStats {
	j.mu.Lock()
	defer j.mu.Unlock()

	statsCopy := j.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(j.stats.NullValueCounts))
	for k, v := range j.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}
