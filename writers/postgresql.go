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
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/aaronlmathis/starload/core"
)

// Package writers provides implementations of core.DataSink for writing star tables to various destinations.
//
// This file implements the PostgreSQL writer used to persist one warehouse relation per run.
// Every buffered record of the relation is written inside a single transaction, so a table is
// either fully committed or not at all.

// PostgresWriterError wraps PostgreSQL-specific write errors with context about the operation.
type PostgresWriterError struct {
	Op  string // The operation being performed (e.g., "copy", "commit")
	Err error  // The underlying error
}

// Error returns the error string for PostgresWriterError.
func (e *PostgresWriterError) Error() string {
	return fmt.Sprintf("postgres writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for PostgresWriterError.
func (e *PostgresWriterError) Unwrap() error {
	return e.Err
}

// PostgresWriterStats holds PostgreSQL write performance statistics.
type PostgresWriterStats struct {
	RecordsWritten   int64            // Total records committed
	TransactionCount int64            // Number of transactions committed
	LastWriteTime    time.Time        // Time of last commit
	WriteDuration    time.Duration    // Total time spent writing
	NullValueCounts  map[string]int64 // Count of null values per column
}

// InsertMode selects how rows are sent to PostgreSQL.
type InsertMode int

const (
	// InsertCopy streams rows with COPY ... FROM STDIN.
	InsertCopy InsertMode = iota
	// InsertPrepared sends multi-row prepared INSERT statements of BatchSize rows.
	InsertPrepared
)

func (m InsertMode) String() string {
	if m == InsertPrepared {
		return "insert"
	}
	return "copy"
}

// ParseInsertMode parses "copy" or "insert".
func ParseInsertMode(name string) (InsertMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "copy":
		return InsertCopy, nil
	case "insert":
		return InsertPrepared, nil
	default:
		return InsertCopy, fmt.Errorf("unknown insert mode %q (want copy or insert)", name)
	}
}

// maxBindParameters is the PostgreSQL limit on parameters in one statement.
const maxBindParameters = 65535

// PostgresWriterOptions configures the PostgreSQL writer.
type PostgresWriterOptions struct {
	TableName    string        // Target table name
	Columns      []core.Column // Columns to write (order matters)
	Mode         InsertMode    // COPY or prepared INSERT
	BatchSize    int           // Rows per INSERT statement in InsertPrepared mode
	QueryTimeout time.Duration // Timeout applied by Flush and Close; zero means none
}

// PostgresWriterOption represents a configuration function for PostgresWriterOptions.
type PostgresWriterOption func(*PostgresWriterOptions)

// WithTableName sets the target table name.
func WithTableName(tableName string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.TableName = tableName
	}
}

// WithColumns sets the columns to write.
func WithColumns(columns []core.Column) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.Columns = append([]core.Column(nil), columns...)
	}
}

// WithInsertMode selects COPY or prepared INSERT statements.
func WithInsertMode(mode InsertMode) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.Mode = mode
	}
}

// WithPostgresBatchSize sets the rows per INSERT statement.
func WithPostgresBatchSize(size int) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.BatchSize = size
	}
}

// WithPostgresQueryTimeout sets the query timeout.
func WithPostgresQueryTimeout(timeout time.Duration) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.QueryTimeout = timeout
	}
}

// PostgresWriter implements core.DataSink for one PostgreSQL relation.
// Records are buffered by Write and committed in one transaction by Flush.
// The *sql.DB is owned by the caller and is not closed by the writer.
type PostgresWriter struct {
	db         *sql.DB
	options    PostgresWriterOptions
	recordBuf  []core.Record
	stats      PostgresWriterStats
	errorState bool
	mu         sync.Mutex
}

// NewPostgresWriter creates a writer for one table on an open database handle.
func NewPostgresWriter(db *sql.DB, opts ...PostgresWriterOption) (*PostgresWriter, error) {
	options := &PostgresWriterOptions{}
	for _, opt := range opts {
		opt(options)
	}
	options = options.withDefaults()

	if db == nil {
		return nil, &PostgresWriterError{Op: "validate", Err: fmt.Errorf("database handle is required")}
	}
	if err := validateOptions(options); err != nil {
		return nil, &PostgresWriterError{Op: "validate", Err: err}
	}

	return &PostgresWriter{
		db:      db,
		options: *options,
		stats:   PostgresWriterStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

// Stats returns a copy of the current write statistics.
func (w *PostgresWriter) Stats() PostgresWriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	statsCopy := w.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(w.stats.NullValueCounts))
	for k, v := range w.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}

// Write implements the core.DataSink interface. Records are buffered until Flush.
func (w *PostgresWriter) Write(ctx context.Context, record core.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.errorState {
		return &PostgresWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}

	for _, col := range w.options.Columns {
		if record[col.Name] == nil {
			w.stats.NullValueCounts[col.Name]++
		}
	}

	w.recordBuf = append(w.recordBuf, record)
	return nil
}

// Flush implements the core.DataSink interface.
func (w *PostgresWriter) Flush() error {
	ctx := context.Background()
	if w.options.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.options.QueryTimeout)
		defer cancel()
	}
	return w.FlushContext(ctx)
}

// FlushContext writes every buffered record in one transaction. On failure the transaction is
// rolled back and the writer refuses further writes.
func (w *PostgresWriter) FlushContext(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flushBufferUnsafe(ctx); err != nil {
		w.errorState = true
		return err
	}
	return nil
}

// Close implements the core.DataSink interface. It flushes pending records.
func (w *PostgresWriter) Close() error {
	return w.Flush()
}

// withDefaults applies default values to PostgresWriterOptions.
func (opts *PostgresWriterOptions) withDefaults() *PostgresWriterOptions {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if n := len(opts.Columns); n > 0 && opts.BatchSize*n > maxBindParameters {
		opts.BatchSize = maxBindParameters / n
	}
	return opts
}

// validateOptions validates the PostgreSQL writer options.
func validateOptions(opts *PostgresWriterOptions) error {
	if opts.TableName == "" {
		return fmt.Errorf("table name is required")
	}
	if len(opts.Columns) == 0 {
		return fmt.Errorf("at least one column is required")
	}
	if opts.Mode != InsertCopy && opts.Mode != InsertPrepared {
		return fmt.Errorf("unknown insert mode %d", opts.Mode)
	}
	return nil
}

// flushBufferUnsafe writes buffered records to PostgreSQL (must hold mutex).
func (w *PostgresWriter) flushBufferUnsafe(ctx context.Context) (err error) {
	if len(w.recordBuf) == 0 {
		return nil
	}

	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return &PostgresWriterError{Op: "begin", Err: err}
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if w.options.Mode == InsertPrepared {
		err = w.insertRowsUnsafe(ctx, tx)
	} else {
		err = w.copyRowsUnsafe(ctx, tx)
	}
	if err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return &PostgresWriterError{Op: "commit", Err: err}
	}

	w.stats.RecordsWritten += int64(len(w.recordBuf))
	w.stats.TransactionCount++
	w.stats.LastWriteTime = time.Now()
	w.stats.WriteDuration += time.Since(start)
	w.recordBuf = w.recordBuf[:0]

	return nil
}

// copyRowsUnsafe streams the buffer through COPY FROM STDIN (must hold mutex).
func (w *PostgresWriter) copyRowsUnsafe(ctx context.Context, tx *sql.Tx) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(w.options.TableName, w.columnNames()...))
	if err != nil {
		return &PostgresWriterError{Op: "prepare_copy", Err: err}
	}
	defer stmt.Close()

	for i, record := range w.recordBuf {
		if _, err := stmt.ExecContext(ctx, w.rowValues(record)...); err != nil {
			return &PostgresWriterError{Op: "copy", Err: fmt.Errorf("row %d: %w", i, err)}
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		return &PostgresWriterError{Op: "copy", Err: err}
	}
	return nil
}

// insertRowsUnsafe sends the buffer as multi-row INSERT statements (must hold mutex).
func (w *PostgresWriter) insertRowsUnsafe(ctx context.Context, tx *sql.Tx) error {
	statements := make(map[int]*sql.Stmt, 2)
	defer func() {
		for _, stmt := range statements {
			stmt.Close()
		}
	}()

	for start := 0; start < len(w.recordBuf); start += w.options.BatchSize {
		end := min(start+w.options.BatchSize, len(w.recordBuf))
		batch := w.recordBuf[start:end]

		stmt, ok := statements[len(batch)]
		if !ok {
			var err error
			stmt, err = tx.PrepareContext(ctx, w.insertQuery(len(batch)))
			if err != nil {
				return &PostgresWriterError{Op: "prepare_insert", Err: err}
			}
			statements[len(batch)] = stmt
		}

		args := make([]interface{}, 0, len(batch)*len(w.options.Columns))
		for _, record := range batch {
			args = append(args, w.rowValues(record)...)
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return &PostgresWriterError{Op: "insert", Err: fmt.Errorf("rows %d-%d: %w", start, end-1, err)}
		}
	}

	return nil
}

// insertQuery builds an INSERT statement for rows records.
func (w *PostgresWriter) insertQuery(rows int) string {
	quoted := make([]string, len(w.options.Columns))
	for i, name := range w.columnNames() {
		quoted[i] = pq.QuoteIdentifier(name)
	}

	n := len(quoted)
	tuples := make([]string, rows)
	placeholders := make([]string, n)
	for r := 0; r < rows; r++ {
		for c := 0; c < n; c++ {
			placeholders[c] = fmt.Sprintf("$%d", r*n+c+1)
		}
		tuples[r] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		pq.QuoteIdentifier(w.options.TableName),
		strings.Join(quoted, ", "),
		strings.Join(tuples, ", "))
}

func (w *PostgresWriter) columnNames() []string {
	names := make([]string, len(w.options.Columns))
	for i, col := range w.options.Columns {
		names[i] = col.Name
	}
	return names
}

// rowValues extracts the record's values in column order.
func (w *PostgresWriter) rowValues(record core.Record) []interface{} {
	values := make([]interface{}, len(w.options.Columns))
	for i, col := range w.options.Columns {
		values[i] = convertValue(col, record[col.Name])
	}
	return values
}

// convertValue converts Go values to PostgreSQL-compatible types.
// Decimals pass through as driver.Valuer; dates are sent as plain calendar dates.
func convertValue(col core.Column, value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		if col.Kind == core.KindDate {
			return v.Format("2006-01-02")
		}
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float32:
		return float64(v)
	default:
		return v
	}
}
