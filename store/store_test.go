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
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/starload/core"
	"github.com/aaronlmathis/starload/star"
	"github.com/aaronlmathis/starload/writers"
)

func newMockStore(t *testing.T, opts Options) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := New(db, opts)
	t.Cleanup(func() { s.Close() })
	return s, mock
}

func shippingTable() *core.Table {
	return &core.Table{
		Name:    star.TableShipping,
		Columns: star.Columns(star.TableShipping),
		Records: []core.Record{
			{"shipping_key": int64(1), "shipping_mode": "Standard Class", "delivery_status": "Advance shipping", "order_status": "COMPLETE"},
			{"shipping_key": int64(2), "shipping_mode": "First Class", "delivery_status": "Late delivery", "order_status": "PENDING"},
		},
	}
}

func TestResetStatement(t *testing.T) {
	assert.Equal(t,
		`TRUNCATE TABLE "fact_orders", "dim_customer", "dim_product", "dim_shipping", "dim_date"`,
		ResetStatement(false))
	assert.Equal(t,
		`TRUNCATE TABLE "fact_orders", "dim_customer", "dim_product", "dim_shipping", "dim_date" CASCADE`,
		ResetStatement(true))
}

func TestStore_Reset(t *testing.T) {
	t.Run("single truncate in a transaction", func(t *testing.T) {
		s, mock := newMockStore(t, Options{TruncateCascade: true})

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(ResetStatement(true))).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		require.NoError(t, s.Reset(context.Background()))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing relation is a write error", func(t *testing.T) {
		s, mock := newMockStore(t, Options{})

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(ResetStatement(false))).
			WillReturnError(&pq.Error{Code: "42P01", Message: `relation "dim_date" does not exist`, Table: "dim_date"})
		mock.ExpectRollback()

		err := s.Reset(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrWrite)

		var se *core.StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "reset", se.Stage)
		assert.Equal(t, "dim_date", se.Relation)
		assert.Contains(t, err.Error(), "create the star schema first")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		s, mock := newMockStore(t, Options{})
		mock.ExpectBegin().WillReturnError(errors.New("connection reset"))

		err := s.Reset(context.Background())
		assert.ErrorIs(t, err, core.ErrWrite)
	})
}

func TestStore_Load(t *testing.T) {
	t.Run("copy", func(t *testing.T) {
		s, mock := newMockStore(t, Options{InsertMode: writers.InsertCopy})

		mock.ExpectBegin()
		prep := mock.ExpectPrepare(regexp.QuoteMeta(
			`COPY "dim_shipping" ("shipping_key", "shipping_mode", "delivery_status", "order_status") FROM STDIN`))
		prep.ExpectExec().WithArgs(int64(1), "Standard Class", "Advance shipping", "COMPLETE").WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().WithArgs(int64(2), "First Class", "Late delivery", "PENDING").WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		require.NoError(t, s.Load(context.Background(), shippingTable()))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert", func(t *testing.T) {
		s, mock := newMockStore(t, Options{InsertMode: writers.InsertPrepared, BatchSize: 10})

		mock.ExpectBegin()
		mock.ExpectPrepare(regexp.QuoteMeta(
			`INSERT INTO "dim_shipping" ("shipping_key", "shipping_mode", "delivery_status", "order_status") VALUES ($1, $2, $3, $4), ($5, $6, $7, $8)`)).
			ExpectExec().
			WithArgs(int64(1), "Standard Class", "Advance shipping", "COMPLETE", int64(2), "First Class", "Late delivery", "PENDING").
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		require.NoError(t, s.Load(context.Background(), shippingTable()))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure names the relation", func(t *testing.T) {
		s, mock := newMockStore(t, Options{})

		mock.ExpectBegin()
		mock.ExpectPrepare("COPY").WillReturnError(&pq.Error{Code: "42501", Message: "permission denied for table dim_shipping"})
		mock.ExpectRollback()

		err := s.Load(context.Background(), shippingTable())
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrWrite)

		var se *core.StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "persist", se.Stage)
		assert.Equal(t, star.TableShipping, se.Relation)
		assert.Contains(t, err.Error(), "permission denied")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty table does not touch the database", func(t *testing.T) {
		s, mock := newMockStore(t, Options{})
		table := shippingTable()
		table.Records = nil

		require.NoError(t, s.Load(context.Background(), table))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_Counts(t *testing.T) {
	t.Run("counts every relation", func(t *testing.T) {
		s, mock := newMockStore(t, Options{})

		for i, table := range star.LoadOrder {
			mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "` + table + `"`)).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(i + 1)))
		}

		counts, err := s.Counts(context.Background())
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{
			star.TableCustomer: 1,
			star.TableProduct:  2,
			star.TableShipping: 3,
			star.TableDate:     4,
			star.TableFact:     5,
		}, counts)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure is a verification error", func(t *testing.T) {
		s, mock := newMockStore(t, Options{})

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "dim_customer"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "dim_product"`)).
			WillReturnError(errors.New("timeout"))

		counts, err := s.Counts(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrVerification)
		assert.False(t, core.IsFatal(err))
		assert.Equal(t, int64(7), counts[star.TableCustomer])

		var se *core.StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, star.TableProduct, se.Relation)
	})
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "", PoolOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConnection)
}

func TestDescribe(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, describe(plain))

	err := describe(&pq.Error{Code: "0A000", Message: "cannot truncate a table referenced in a foreign key constraint"})
	assert.Contains(t, err.Error(), "truncate_cascade")

	var pqErr *pq.Error
	assert.ErrorAs(t, err, &pqErr)
}
