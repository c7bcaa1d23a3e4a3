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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/starload/core"
	"github.com/aaronlmathis/starload/transform"
)

// This file implements the Parquet writer used to export star tables.
// The Arrow schema comes from the table's column layout, so the file is typed even when
// the first rows are NULL.

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "open_file", "schema", "write_batch")
	Err error  // Underlying error
}

// Error returns the error string for ParquetWriterError.
func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetWriterError.
func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// WriterStats holds statistics about the Parquet writer's performance.
type WriterStats struct {
	RecordsWritten  int64
	BatchesWritten  int64
	FlushDuration   time.Duration
	LastFlushTime   time.Time
	NullValueCounts map[string]int64
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	BatchSize    int64                // Number of records to buffer before writing
	Columns      []core.Column        // Column layout; required
	Compression  compress.Compression // Compression algorithm
	RowGroupSize int64                // Maximum rows per row group
}

// WriterOption represents a configuration function for ParquetWriterOptions.
type WriterOption func(*ParquetWriterOptions)

// WithBatchSize sets the number of records to buffer before writing a batch.
func WithBatchSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// WithParquetColumns sets the column layout the schema is built from.
func WithParquetColumns(columns []core.Column) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Columns = append([]core.Column(nil), columns...)
	}
}

// WithRowGroupSize sets the row group size for the Parquet file.
func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// ParquetWriter implements core.DataSink for Parquet files.
type ParquetWriter struct {
	writer       *pqarrow.FileWriter
	schema       *arrow.Schema
	columns      []core.Column
	builders     []array.Builder
	allocator    memory.Allocator
	recordBuffer []core.Record
	opts         *ParquetWriterOptions
	stats        WriterStats
	closed       bool
	errorState   bool
}

// NewParquetWriter creates a new Parquet writer for a file, creating parent directories.
func NewParquetWriter(filename string, options ...WriterOption) (*ParquetWriter, error) {
	opts := (&ParquetWriterOptions{}).withDefaults()
	for _, option := range options {
		option(opts)
	}

	if len(opts.Columns) == 0 {
		return nil, &ParquetWriterError{Op: "schema", Err: fmt.Errorf("columns are required")}
	}

	if dir := filepath.Dir(filename); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &ParquetWriterError{
				Op:  "create_directory",
				Err: fmt.Errorf("failed to create directory %s: %w", dir, err),
			}
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, &ParquetWriterError{
			Op:  "open_file",
			Err: fmt.Errorf("failed to create parquet file %s: %w", filename, err),
		}
	}

	schema := arrowSchema(opts.Columns)
	props := parquet.NewWriterProperties(
		parquet.WithCompression(opts.Compression),
		parquet.WithMaxRowGroupLength(opts.RowGroupSize),
	)

	fw, err := pqarrow.NewFileWriter(schema, file, props, pqarrow.DefaultWriterProps())
	if err != nil {
		file.Close()
		return nil, &ParquetWriterError{
			Op:  "create_writer",
			Err: fmt.Errorf("failed to create parquet file writer: %w", err),
		}
	}

	allocator := memory.NewGoAllocator()
	builders := make([]array.Builder, len(opts.Columns))
	for i, field := range schema.Fields() {
		builders[i] = array.NewBuilder(allocator, field.Type)
	}

	return &ParquetWriter{
		writer:       fw,
		schema:       schema,
		columns:      opts.Columns,
		builders:     builders,
		allocator:    allocator,
		recordBuffer: make([]core.Record, 0, opts.BatchSize),
		opts:         opts,
		stats:        WriterStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

// withDefaults applies default values to ParquetWriterOptions.
func (opts *ParquetWriterOptions) withDefaults() *ParquetWriterOptions {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.RowGroupSize <= 0 {
		opts.RowGroupSize = 10000
	}
	if opts.Compression == 0 {
		opts.Compression = compress.Codecs.Snappy
	}
	return opts
}

// arrowSchema maps warehouse column kinds to Arrow types.
// Decimals are stored as float64.
func arrowSchema(columns []core.Column) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, col := range columns {
		var dt arrow.DataType
		switch col.Kind {
		case core.KindInt:
			dt = arrow.PrimitiveTypes.Int64
		case core.KindFloat, core.KindDecimal:
			dt = arrow.PrimitiveTypes.Float64
		case core.KindBool:
			dt = arrow.FixedWidthTypes.Boolean
		case core.KindDate:
			dt = arrow.FixedWidthTypes.Date32
		default:
			dt = arrow.BinaryTypes.String
		}
		fields[i] = arrow.Field{Name: col.Name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// Stats returns the current statistics of the Parquet writer.
func (p *ParquetWriter) Stats() WriterStats {
	return p.stats
}

// Write implements the core.DataSink interface.
func (p *ParquetWriter) Write(ctx context.Context, record core.Record) error {
	if p.closed {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("parquet writer is closed")}
	}
	if p.errorState {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}

	p.recordBuffer = append(p.recordBuffer, record)
	p.stats.RecordsWritten++

	if int64(len(p.recordBuffer)) >= p.opts.BatchSize {
		if err := p.flushBatch(); err != nil {
			p.errorState = true
			return err
		}
	}
	return nil
}

// Flush implements the core.DataSink interface.
func (p *ParquetWriter) Flush() error {
	return p.flushBatch()
}

// Close implements the core.DataSink interface. It flushes and closes the file.
func (p *ParquetWriter) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.flushBatch(); err != nil {
		return &ParquetWriterError{
			Op:  "flush_remaining",
			Err: fmt.Errorf("failed to flush remaining records: %w", err),
		}
	}

	for _, builder := range p.builders {
		builder.Release()
	}
	p.builders = nil

	if err := p.writer.Close(); err != nil {
		return &ParquetWriterError{
			Op:  "close_writer",
			Err: fmt.Errorf("failed to close parquet writer: %w", err),
		}
	}
	return nil
}

// flushBatch writes the current buffer as one Arrow record batch.
func (p *ParquetWriter) flushBatch() error {
	if len(p.recordBuffer) == 0 {
		return nil
	}

	start := time.Now()

	for _, record := range p.recordBuffer {
		for i, col := range p.columns {
			value := record[col.Name]
			if value == nil {
				p.builders[i].AppendNull()
				p.stats.NullValueCounts[col.Name]++
				continue
			}
			if err := appendValue(p.builders[i], col, value); err != nil {
				return &ParquetWriterError{Op: "append_value", Err: err}
			}
		}
	}

	arrays := make([]arrow.Array, len(p.builders))
	for i, builder := range p.builders {
		arrays[i] = builder.NewArray()
	}
	rec := array.NewRecord(p.schema, arrays, int64(len(p.recordBuffer)))
	for _, arr := range arrays {
		arr.Release()
	}
	defer rec.Release()

	if err := p.writer.Write(rec); err != nil {
		return &ParquetWriterError{
			Op:  "write_batch",
			Err: fmt.Errorf("failed to write record batch: %w", err),
		}
	}

	p.stats.BatchesWritten++
	p.stats.FlushDuration += time.Since(start)
	p.stats.LastFlushTime = time.Now()
	p.recordBuffer = p.recordBuffer[:0]

	return nil
}

// appendValue appends a non-nil value to the builder of its column.
func appendValue(builder array.Builder, col core.Column, value interface{}) error {
	switch b := builder.(type) {
	case *array.Int64Builder:
		v, err := transform.ToInt64(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", col.Name, err)
		}
		b.Append(v)
	case *array.Float64Builder:
		v, err := transform.ToFloat64(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", col.Name, err)
		}
		b.Append(v)
	case *array.BooleanBuilder:
		v, err := transform.ToBool(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", col.Name, err)
		}
		b.Append(v)
	case *array.Date32Builder:
		v, err := transform.ParseDate(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", col.Name, err)
		}
		b.Append(arrow.Date32FromTime(v))
	case *array.StringBuilder:
		b.Append(formatText(col, value))
	default:
		return fmt.Errorf("unsupported builder type for field %s", col.Name)
	}
	return nil
}
