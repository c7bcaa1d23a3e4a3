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
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/starload/core"
)

// TestJSONWriter_BasicFunctionality tests one line per record in column order
func TestJSONWriter_BasicFunctionality(t *testing.T) {
	mock := newMockWriteCloser()
	writer := NewJSONWriter(mock, WithJSONColumns(dateTestColumns))

	ctx := context.Background()
	for _, r := range dateTestRecords() {
		require.NoError(t, writer.Write(ctx, r))
	}
	require.NoError(t, writer.Close())
	assert.True(t, mock.IsClosed())

	lines := strings.Split(strings.TrimSpace(mock.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t,
		`{"date_key":1,"full_date":"2015-01-03","day_of_week":"Saturday","is_weekend":true,"price":"327.75"}`,
		lines[0])

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Nil(t, second["price"])
	assert.Equal(t, false, second["is_weekend"])

	stats := writer.Stats()
	assert.Equal(t, int64(2), stats.RecordsWritten)
	assert.Equal(t, int64(1), stats.NullValueCounts["price"])
}

// TestJSONWriter_InferredColumns tests keys fall back to sorted record keys
func TestJSONWriter_InferredColumns(t *testing.T) {
	mock := newMockWriteCloser()
	writer := NewJSONWriter(mock)

	require.NoError(t, writer.Write(context.Background(), core.Record{"z": 1, "a": "x"}))
	require.NoError(t, writer.Close())

	assert.Equal(t, "{\"a\":\"x\",\"z\":1}\n", mock.String())
}

// TestJSONWriter_ErrorHandling tests write failures surface on flush
func TestJSONWriter_ErrorHandling(t *testing.T) {
	mock := newMockWriteCloser()
	mock.failWrite = true
	writer := NewJSONWriter(mock)

	require.NoError(t, writer.Write(context.Background(), core.Record{"a": 1}))
	assert.Error(t, writer.Flush())
}

func TestJSONWriter_UnsupportedValue(t *testing.T) {
	writer := NewJSONWriter(newMockWriteCloser())
	err := writer.Write(context.Background(), core.Record{"ch": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ch")
}
