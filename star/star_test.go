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
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/starload/core"
	"github.com/aaronlmathis/starload/readers"
)

// sourceRow returns a complete raw record with overrides applied.
func sourceRow(overrides map[string]interface{}) core.Record {
	r := core.Record{
		SrcCustomerID:        "C1",
		SrcCustomerFname:     "Ann",
		SrcCustomerLname:     "Lee",
		SrcCustomerSegment:   "Consumer",
		SrcCustomerCity:      "Caguas",
		SrcCustomerState:     "PR",
		SrcCustomerCountry:   "Puerto Rico",
		SrcOrderRegion:       "Caribbean",
		SrcProductID:         "1360",
		SrcProductName:       "Smart watch",
		SrcCategoryName:      "Sporting Goods",
		SrcDepartmentName:    "Fitness",
		SrcProductPrice:      "327.75",
		SrcShippingMode:      "Standard Class",
		SrcDeliveryStatus:    "Late delivery",
		SrcOrderStatus:       "COMPLETE",
		SrcOrderDate:         "1/3/2015 22:56",
		SrcShipDate:          "1/7/2015 22:56",
		SrcOrderID:           "77202",
		SrcOrderItemQuantity: "1",
		SrcSales:             "327.75",
		SrcOrderProfit:       "91.25",
		SrcOrderItemDiscount: "13.11",
		SrcDaysScheduled:     "4",
		SrcDaysReal:          "3",
		SrcLateDeliveryRisk:  "0",
	}
	for k, v := range overrides {
		r[k] = v
	}
	return r
}

func rawTable(rows ...core.Record) *readers.RawTable {
	return &readers.RawTable{
		Source:  "test.csv",
		Columns: append([]string(nil), SourceColumns...),
		Records: rows,
	}
}

func sampleRaw() *readers.RawTable {
	return rawTable(
		sourceRow(nil),
		sourceRow(map[string]interface{}{SrcOrderID: "77203"}),
		sourceRow(map[string]interface{}{
			SrcCustomerID:     "C2",
			SrcCustomerFname:  "Mary",
			SrcCustomerLname:  "Smith",
			SrcProductID:      "365",
			SrcProductName:    "Perfect Fitness Perfect Rip Deck",
			SrcProductPrice:   "59.99",
			SrcShippingMode:   "First Class",
			SrcDeliveryStatus: "Advance shipping",
			SrcOrderDate:      "1/1/2015 10:00",
			SrcShipDate:       "1/3/2015 9:30",
		}),
		sourceRow(map[string]interface{}{
			SrcCustomerID:  "C3",
			SrcOrderStatus: "PENDING",
			SrcOrderDate:   "12/31/2014 23:59",
		}),
	)
}

type builder func(context.Context, *readers.RawTable, ...BuildOption) (*Dimension, error)

var builders = map[string]builder{
	TableCustomer: BuildCustomerDimension,
	TableProduct:  BuildProductDimension,
	TableShipping: BuildShippingDimension,
	TableDate:     BuildDateDimension,
}

func buildAll(t *testing.T, raw *readers.RawTable, options ...BuildOption) Dimensions {
	t.Helper()
	ctx := context.Background()

	customer, err := BuildCustomerDimension(ctx, raw, options...)
	require.NoError(t, err)
	product, err := BuildProductDimension(ctx, raw, options...)
	require.NoError(t, err)
	shipping, err := BuildShippingDimension(ctx, raw, options...)
	require.NoError(t, err)
	date, err := BuildDateDimension(ctx, raw, options...)
	require.NoError(t, err)

	return Dimensions{Customer: customer, Product: product, Shipping: shipping, Date: date}
}

// TestDimensions_DenseKeys checks every dimension numbers its rows 1..n without gaps
func TestDimensions_DenseKeys(t *testing.T) {
	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			dim, err := build(context.Background(), sampleRaw())
			require.NoError(t, err)
			require.NotZero(t, dim.Table.Len())

			keyColumn := dim.Table.Columns[0].Name
			for i, row := range dim.Table.Records {
				assert.Equal(t, int64(i+1), row[keyColumn])
			}
			assert.Equal(t, dim.Table.Len(), dim.Keys.Len())
			assert.Empty(t, dim.Keys.Conflicts())
		})
	}
}

// TestDimensions_Deterministic checks two builds over the same input are identical
func TestDimensions_Deterministic(t *testing.T) {
	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			first, err := build(context.Background(), sampleRaw())
			require.NoError(t, err)
			second, err := build(context.Background(), sampleRaw())
			require.NoError(t, err)

			assert.Equal(t, first.Table.Records, second.Table.Records)
		})
	}
}

// TestDimensions_Idempotent checks feeding the input twice adds no rows
func TestDimensions_Idempotent(t *testing.T) {
	raw := sampleRaw()
	doubled := rawTable(append(append([]core.Record(nil), raw.Records...), raw.Records...)...)

	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			once, err := build(context.Background(), raw)
			require.NoError(t, err)
			twice, err := build(context.Background(), doubled)
			require.NoError(t, err)

			assert.Equal(t, once.Table.Records, twice.Table.Records)
		})
	}
}

func TestBuildCustomerDimension(t *testing.T) {
	raw := rawTable(
		sourceRow(nil),
		sourceRow(map[string]interface{}{SrcOrderID: "2"}),
		sourceRow(map[string]interface{}{SrcCustomerID: "C2", SrcCustomerLname: nil}),
	)

	dim, err := BuildCustomerDimension(context.Background(), raw)
	require.NoError(t, err)

	require.Equal(t, 2, dim.Table.Len())
	assert.Equal(t, 1, dim.Stats.Duplicates)
	assert.Equal(t, core.Record{
		"customer_key":     int64(1),
		"customer_id":      "C1",
		"customer_name":    "Ann Lee",
		"customer_segment": "Consumer",
		"customer_city":    "Caguas",
		"customer_state":   "PR",
		"customer_country": "Puerto Rico",
		"customer_region":  "Caribbean",
	}, dim.Table.Records[0])
	assert.Equal(t, "Ann", dim.Table.Records[1]["customer_name"])

	key, ok := dim.Keys.Lookup("C1")
	require.True(t, ok)
	assert.Equal(t, int64(1), key)
}

func TestBuildCustomerDimension_SkipsMissingNaturalKey(t *testing.T) {
	raw := rawTable(sourceRow(nil), sourceRow(map[string]interface{}{SrcCustomerID: nil}))

	dim, err := BuildCustomerDimension(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, 1, dim.Table.Len())
	assert.Equal(t, 1, dim.Stats.Skipped)
}

func TestBuildProductDimension_Price(t *testing.T) {
	raw := rawTable(
		sourceRow(nil),
		sourceRow(map[string]interface{}{SrcProductID: "9", SrcProductPrice: "free"}),
	)

	dim, err := BuildProductDimension(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, 2, dim.Table.Len())

	price, ok := dim.Table.Records[0]["product_price"].(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.RequireFromString("327.75")))
	assert.Nil(t, dim.Table.Records[1]["product_price"])
}

func TestDriftPolicy(t *testing.T) {
	raw := rawTable(
		sourceRow(nil),
		sourceRow(map[string]interface{}{SrcCustomerCity: "San Juan", SrcProductPrice: "299.99"}),
	)

	t.Run("first wins", func(t *testing.T) {
		dims := buildAll(t, raw)

		require.Equal(t, 1, dims.Customer.Table.Len())
		assert.Equal(t, "Caguas", dims.Customer.Table.Records[0]["customer_city"])
		assert.Equal(t, 1, dims.Customer.Stats.Drifted)
		assert.Equal(t, []string{"C1"}, dims.Customer.Stats.DriftedKeys)

		require.Equal(t, 1, dims.Product.Table.Len())
		assert.Equal(t, []string{"1360"}, dims.Product.Stats.DriftedKeys)
	})

	t.Run("keep all", func(t *testing.T) {
		dims := buildAll(t, raw, WithDriftPolicy(DriftKeepAll))

		require.Equal(t, 2, dims.Customer.Table.Len())
		assert.Equal(t, 0, dims.Customer.Stats.Drifted)
		assert.Equal(t, []string{"C1"}, dims.Customer.Stats.DriftedKeys)

		key, ok := dims.Customer.Keys.Lookup("C1")
		require.True(t, ok)
		assert.Equal(t, int64(1), key)
		require.Len(t, dims.Customer.Keys.Conflicts(), 1)
		assert.Equal(t, KeyConflict{NaturalKey: "C1", Existing: 1, Rejected: 2}, dims.Customer.Keys.Conflicts()[0])
	})

	t.Run("reject", func(t *testing.T) {
		_, err := BuildCustomerDimension(context.Background(), raw, WithDriftPolicy(DriftReject))
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrConfiguration)
		assert.Contains(t, err.Error(), `"C1"`)
	})
}

func TestBuildShippingDimension(t *testing.T) {
	raw := rawTable(
		sourceRow(nil),
		sourceRow(map[string]interface{}{SrcOrderID: "2"}),
	)

	dim, err := BuildShippingDimension(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, 1, dim.Table.Len())

	key, ok := dim.Keys.Lookup("Standard Class|Late delivery|COMPLETE")
	require.True(t, ok)
	assert.Equal(t, int64(1), key)

	// an unseen triple produces a new row on the next build
	raw.Records = append(raw.Records, sourceRow(map[string]interface{}{SrcOrderStatus: "CLOSED"}))
	dim, err = BuildShippingDimension(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, 2, dim.Table.Len())

	key, ok = dim.Keys.Lookup("Standard Class|Late delivery|CLOSED")
	require.True(t, ok)
	assert.Equal(t, int64(2), key)
}

func TestBuildDateDimension(t *testing.T) {
	raw := rawTable(
		sourceRow(map[string]interface{}{SrcOrderDate: "1/3/2015 22:56", SrcShipDate: "1/5/2015 10:00"}),
		sourceRow(map[string]interface{}{SrcOrderDate: "1/3/2015 08:10", SrcShipDate: "not a date"}),
		sourceRow(map[string]interface{}{SrcOrderDate: "12/30/2014 12:00", SrcShipDate: nil}),
	)

	dim, err := BuildDateDimension(context.Background(), raw)
	require.NoError(t, err)

	require.Equal(t, 3, dim.Table.Len())
	assert.Equal(t, 2, dim.Stats.Skipped)

	var dates []string
	for _, row := range dim.Table.Records {
		dates = append(dates, row["full_date"].(time.Time).Format("2006-01-02"))
	}
	assert.Equal(t, []string{"2014-12-30", "2015-01-03", "2015-01-05"}, dates)

	saturday := dim.Table.Records[1]
	assert.Equal(t, int64(2), saturday["date_key"])
	assert.Equal(t, "Saturday", saturday["day_of_week"])
	assert.Equal(t, int64(3), saturday["day_of_month"])
	assert.Equal(t, int64(1), saturday["month"])
	assert.Equal(t, "January", saturday["month_name"])
	assert.Equal(t, int64(1), saturday["quarter"])
	assert.Equal(t, int64(2015), saturday["year"])
	assert.Equal(t, true, saturday["is_weekend"])

	assert.Equal(t, false, dim.Table.Records[0]["is_weekend"])
	assert.Equal(t, int64(4), dim.Table.Records[0]["quarter"])

	key, ok := dim.Keys.Lookup("2015-01-03")
	require.True(t, ok)
	assert.Equal(t, int64(2), key)
}

func TestBuildDimension_MissingColumn(t *testing.T) {
	raw := sampleRaw()
	raw.Columns = raw.Columns[1:] // drop Customer Id

	_, err := BuildCustomerDimension(context.Background(), raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfiguration)
	assert.Contains(t, err.Error(), SrcCustomerID)
}

func TestBuildFactOrders(t *testing.T) {
	raw := sampleRaw()
	dims := buildAll(t, raw)

	fact, err := BuildFactOrders(context.Background(), raw, dims)
	require.NoError(t, err)

	require.Equal(t, raw.Len(), fact.Table.Len())
	assert.Equal(t, raw.Len(), fact.Stats.Rows)
	assert.Empty(t, fact.Stats.LookupMisses)
	assert.Empty(t, fact.Stats.CoercionFailures)
	assert.Equal(t, Columns(TableFact), fact.Table.Columns)

	first := fact.Table.Records[0]
	assert.Equal(t, "77202", first["order_number"])
	assert.Equal(t, int64(1), first["order_quantity"])
	assert.True(t, decimal.RequireFromString("91.25").Equal(first["order_profit"].(decimal.Decimal)))
	assert.Equal(t, int64(4), first["days_to_ship_scheduled"])
	assert.Equal(t, int64(3), first["days_to_ship_actual"])
	assert.Equal(t, int64(0), first["late_delivery_risk"])
	assert.Nil(t, first["late_delivery_predicted"])
	assert.Nil(t, first["prediction_probability"])

	// duplicate order ids are not collapsed
	assert.Equal(t, first["customer_key"], fact.Table.Records[1]["customer_key"])
	assert.Equal(t, "77203", fact.Table.Records[1]["order_number"])
}

// TestBuildFactOrders_ReferentialIntegrity checks every non-nil foreign key exists in its dimension
func TestBuildFactOrders_ReferentialIntegrity(t *testing.T) {
	raw := sampleRaw()
	dims := buildAll(t, raw)

	fact, err := BuildFactOrders(context.Background(), raw, dims)
	require.NoError(t, err)

	keySet := func(dim *Dimension) map[interface{}]bool {
		set := make(map[interface{}]bool)
		column := dim.Table.Columns[0].Name
		for _, row := range dim.Table.Records {
			set[row[column]] = true
		}
		return set
	}

	references := map[string]map[interface{}]bool{
		"customer_key":   keySet(dims.Customer),
		"product_key":    keySet(dims.Product),
		"shipping_key":   keySet(dims.Shipping),
		"order_date_key": keySet(dims.Date),
		"ship_date_key":  keySet(dims.Date),
	}

	for i, row := range fact.Table.Records {
		for column, keys := range references {
			if row[column] == nil {
				continue
			}
			assert.True(t, keys[row[column]], "row %d %s=%v has no dimension row", i, column, row[column])
		}
	}
}

func TestBuildFactOrders_LookupMissAndCoercion(t *testing.T) {
	dims := buildAll(t, rawTable(sourceRow(nil)))

	raw := rawTable(
		sourceRow(nil),
		sourceRow(map[string]interface{}{
			SrcCustomerID:        "C9",
			SrcShipDate:          "garbage",
			SrcSales:             "n/a",
			SrcOrderItemQuantity: "1.5",
		}),
	)

	fact, err := BuildFactOrders(context.Background(), raw, dims)
	require.NoError(t, err)
	require.Equal(t, 2, fact.Table.Len())

	row := fact.Table.Records[1]
	assert.Nil(t, row["customer_key"])
	assert.Nil(t, row["ship_date_key"])
	assert.Equal(t, int64(1), row["product_key"])
	assert.Nil(t, row["sales"])
	assert.Nil(t, row["order_quantity"])

	assert.Equal(t, map[string]int{"customer_key": 1, "ship_date_key": 1}, fact.Stats.LookupMisses)
	assert.Equal(t, map[string]int{"sales": 1, "order_quantity": 1}, fact.Stats.CoercionFailures)
}

func TestBuildFactOrders_RequiresDimensions(t *testing.T) {
	_, err := BuildFactOrders(context.Background(), sampleRaw(), Dimensions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestKeyMap(t *testing.T) {
	m := NewKeyMap(2)
	assert.True(t, m.Insert("a", 1))
	assert.False(t, m.Insert("a", 2))
	assert.True(t, m.Insert("b", 3))

	key, ok := m.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, int64(1), key)

	_, ok = m.Lookup("z")
	assert.False(t, ok)

	assert.Equal(t, 2, m.Len())
	require.Len(t, m.Conflicts(), 1)
	assert.Contains(t, m.Conflicts()[0].String(), `"a"`)
}

func TestParseDriftPolicy(t *testing.T) {
	for in, want := range map[string]DriftPolicy{
		"":           DriftFirstWins,
		"first_wins": DriftFirstWins,
		"KEEP_ALL":   DriftKeepAll,
		" reject ":   DriftReject,
	} {
		got, err := ParseDriftPolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseDriftPolicy("last_wins")
	assert.Error(t, err)
}
