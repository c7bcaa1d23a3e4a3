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

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/aaronlmathis/starload/core"
	"github.com/aaronlmathis/starload/star"
	"github.com/aaronlmathis/starload/writers"
)

// PoolOptions configures the connection pool opened by Open.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// Open connects to PostgreSQL and verifies the connection.
// Any failure is a connection error.
func Open(ctx context.Context, dsn string, pool PoolOptions) (*sql.DB, error) {
	if dsn == "" {
		return nil, core.NewStageError(core.KindConnection, "connect", "", fmt.Errorf("dsn is required"))
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, core.NewStageError(core.KindConnection, "connect", "", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if pool.PingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pool.PingTimeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, core.NewStageError(core.KindConnection, "connect", "", describe(err))
	}

	return db, nil
}

// Options controls how relations are reset and persisted.
type Options struct {
	InsertMode      writers.InsertMode
	BatchSize       int
	TruncateCascade bool
	QueryTimeout    time.Duration
}

// Store persists star tables into an existing PostgreSQL schema.
type Store struct {
	db   *sql.DB
	opts Options
}

// New wraps an open database handle. The Store takes ownership of db.
func New(db *sql.DB, opts Options) *Store {
	return &Store{db: db, opts: opts}
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.QueryTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.QueryTimeout)
	}
	return ctx, func() {}
}

// ResetStatement returns the single TRUNCATE covering every star relation.
func ResetStatement(cascade bool) string {
	quoted := make([]string, len(star.ResetOrder))
	for i, table := range star.ResetOrder {
		quoted[i] = pq.QuoteIdentifier(table)
	}
	stmt := "TRUNCATE TABLE " + strings.Join(quoted, ", ")
	if cascade {
		stmt += " CASCADE"
	}
	return stmt
}

// Reset empties the fact table and all dimensions in one transaction.
func (s *Store) Reset(ctx context.Context) (err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewStageError(core.KindWrite, "reset", "", describe(err))
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, ResetStatement(s.opts.TruncateCascade)); err != nil {
		return core.NewStageError(core.KindWrite, "reset", relationOf(err), describe(err))
	}
	if err = tx.Commit(); err != nil {
		return core.NewStageError(core.KindWrite, "reset", "", describe(err))
	}
	return nil
}

// Writer returns a PostgresWriter for one star table.
func (s *Store) Writer(table *core.Table) (*writers.PostgresWriter, error) {
	return writers.NewPostgresWriter(s.db,
		writers.WithTableName(table.Name),
		writers.WithColumns(table.Columns),
		writers.WithInsertMode(s.opts.InsertMode),
		writers.WithPostgresBatchSize(s.opts.BatchSize),
	)
}

// Load persists every row of table in a single transaction.
func (s *Store) Load(ctx context.Context, table *core.Table) error {
	w, err := s.Writer(table)
	if err != nil {
		return core.NewStageError(core.KindWrite, "persist", table.Name, err)
	}

	for _, record := range table.Records {
		if err := w.Write(ctx, record); err != nil {
			return core.NewStageError(core.KindWrite, "persist", table.Name, err)
		}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := w.FlushContext(ctx); err != nil {
		return core.NewStageError(core.KindWrite, "persist", table.Name, describe(err))
	}
	return nil
}

// Counts returns COUNT(*) for every star relation.
func (s *Store) Counts(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	counts := make(map[string]int64, len(star.LoadOrder))
	for _, table := range star.LoadOrder {
		var n int64
		query := "SELECT COUNT(*) FROM " + pq.QuoteIdentifier(table)
		if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return counts, core.NewStageError(core.KindVerification, "verify", table, describe(err))
		}
		counts[table] = n
	}
	return counts, nil
}

// describe adds a readable cause to PostgreSQL errors that operators commonly hit.
func describe(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "42P01":
		return fmt.Errorf("relation does not exist, create the star schema first: %w", err)
	case "42501":
		return fmt.Errorf("permission denied: %w", err)
	case "0A000":
		return fmt.Errorf("table is referenced by a foreign key, enable truncate_cascade: %w", err)
	case "23503":
		return fmt.Errorf("foreign key violation: %w", err)
	case "23505":
		return fmt.Errorf("unique violation: %w", err)
	case "28P01", "28000":
		return fmt.Errorf("authentication failed: %w", err)
	case "3D000":
		return fmt.Errorf("database does not exist: %w", err)
	default:
		return err
	}
}

func relationOf(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Table
	}
	return ""
}
