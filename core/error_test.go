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

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageError_Is(t *testing.T) {
	base := errors.New("relation \"dim_date\" does not exist")
	err := NewStageError(KindWrite, "persist", "dim_date", base)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrWrite)
	assert.ErrorIs(t, err, base)
	assert.NotErrorIs(t, err, ErrRead)
	assert.Equal(t, `write error: stage persist (dim_date): relation "dim_date" does not exist`, err.Error())

	wrapped := fmt.Errorf("run failed: %w", err)
	var se *StageError
	require.True(t, errors.As(wrapped, &se))
	assert.Equal(t, "dim_date", se.Relation)
}

func TestStageError_NilPassthrough(t *testing.T) {
	assert.NoError(t, NewStageError(KindRead, "load_raw", "x.csv", nil))
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"verification", NewStageError(KindVerification, "verify", "fact_orders", errors.New("boom")), false},
		{"connection", NewStageError(KindConnection, "connect", "", errors.New("refused")), true},
		{"configuration", NewStageError(KindConfiguration, "load_raw", "", errors.New("missing")), true},
		{"plain", errors.New("unclassified"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}

func TestTable_ColumnNames(t *testing.T) {
	table := &Table{
		Name: "dim_shipping",
		Columns: []Column{
			{Name: "shipping_key", Kind: KindInt},
			{Name: "shipping_mode", Kind: KindString},
		},
		Records: []Record{{"shipping_key": int64(1), "shipping_mode": "First Class"}},
	}

	assert.Equal(t, []string{"shipping_key", "shipping_mode"}, table.ColumnNames())
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, "int", KindInt.String())
	assert.Equal(t, "decimal", KindDecimal.String())
}
