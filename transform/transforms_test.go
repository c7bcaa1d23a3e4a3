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
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/starload/core"
)

func TestSelectRename(t *testing.T) {
	raw := core.Record{
		"Customer Id":      "C1",
		"Customer Segment": "Consumer",
		"Sales":            "10.5",
	}

	out, err := core.Chain(context.Background(), raw,
		Select("Customer Id", "Customer Segment", "Customer City"),
		Rename(map[string]string{"Customer Id": "customer_id", "Customer Segment": "customer_segment"}),
	)
	require.NoError(t, err)

	assert.Equal(t, core.Record{
		"customer_id":      "C1",
		"customer_segment": "Consumer",
		"Customer City":    nil,
	}, out)
	assert.Len(t, raw, 3, "input record must not be modified")
}

func TestConcat(t *testing.T) {
	tests := []struct {
		name   string
		record core.Record
		want   interface{}
	}{
		{"both", core.Record{"f": "Ann", "l": "Lee"}, "Ann Lee"},
		{"last missing", core.Record{"f": "Ann", "l": nil}, "Ann"},
		{"both missing", core.Record{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Concat("name", " ", "f", "l").Transform(context.Background(), tt.record)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out["name"])
		})
	}
}

func TestTrimSpace(t *testing.T) {
	out, err := TrimSpace("a", "b", "c").Transform(context.Background(), core.Record{"a": "  x ", "b": "   ", "c": 3})
	require.NoError(t, err)
	assert.Equal(t, "x", out["a"])
	assert.Nil(t, out["b"])
	assert.Equal(t, 3, out["c"])
}

func TestRemoveFields(t *testing.T) {
	out, err := RemoveFields("b", "missing").Transform(context.Background(), core.Record{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, core.Record{"a": 1}, out)
}

func TestCoerce(t *testing.T) {
	t.Run("strict", func(t *testing.T) {
		_, err := Coerce(core.KindInt, nil, "qty").Transform(context.Background(), core.Record{"qty": "two"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "qty")
	})

	t.Run("lenient", func(t *testing.T) {
		var failed []string
		onFailure := func(field string, value interface{}, err error) {
			failed = append(failed, field)
		}

		out, err := Coerce(core.KindDecimal, onFailure, "sales", "profit", "discount").
			Transform(context.Background(), core.Record{"sales": "327.75", "profit": "n/a", "discount": nil})
		require.NoError(t, err)

		assert.True(t, decimal.RequireFromString("327.75").Equal(out["sales"].(decimal.Decimal)))
		assert.Nil(t, out["profit"])
		assert.Nil(t, out["discount"])
		assert.Equal(t, []string{"profit"}, failed)
	})
}

func TestToInt64(t *testing.T) {
	tests := []struct {
		in      interface{}
		want    int64
		wantErr bool
	}{
		{"3", 3, false},
		{" 4 ", 4, false},
		{"2.0", 2, false},
		{"2.5", 0, true},
		{"abc", 0, true},
		{int64(7), 7, false},
		{9, 9, false},
		{true, 0, true},
	}

	for _, tt := range tests {
		got, err := ToInt64(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %v", tt.in)
			continue
		}
		require.NoError(t, err, "input %v", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestToDecimal(t *testing.T) {
	d, err := ToDecimal("91.25")
	require.NoError(t, err)
	assert.Equal(t, "91.25", d.String())

	_, err = ToDecimal("ninety")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2015, time.January, 3, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{
		"1/3/2015 22:56",
		"1/3/2015 22:56:10",
		"1/3/2015",
		"2015-01-03 08:00:00",
		"2015-01-03T08:00:00Z",
		"2015-01-03",
	} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s parsed to %s", in, got)
	}

	_, err := ParseDate("yesterday")
	assert.Error(t, err)
	_, err = ParseDate(nil)
	assert.Error(t, err)
}

func TestDateKey_SameDayCollapses(t *testing.T) {
	a, err := DateKey("1/3/2015 00:01")
	require.NoError(t, err)
	b, err := DateKey("1/3/2015 23:59")
	require.NoError(t, err)

	assert.Equal(t, "2015-01-03", a)
	assert.Equal(t, a, b)
}

func TestCoerceValue(t *testing.T) {
	v, err := CoerceValue(core.KindBool, "true")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = CoerceValue(core.KindFloat, "0.5")
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)

	v, err = CoerceValue(core.KindString, int64(12))
	require.NoError(t, err)
	assert.Equal(t, "12", v)

	_, err = CoerceValue(core.ColumnKind(99), "x")
	assert.Error(t, err)
}
