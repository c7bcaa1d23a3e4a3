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
	"fmt"

	"github.com/aaronlmathis/starload/core"
	"github.com/aaronlmathis/starload/readers"
	"github.com/aaronlmathis/starload/transform"
)

// Dimensions bundles the four built dimensions the fact table references.
type Dimensions struct {
	Customer *Dimension
	Product  *Dimension
	Shipping *Dimension
	Date     *Dimension
}

// Tables returns the dimension tables in load order.
func (d Dimensions) Tables() []*core.Table {
	return []*core.Table{d.Customer.Table, d.Product.Table, d.Shipping.Table, d.Date.Table}
}

// FactStats counts per-column problems found while building the fact table.
// Neither kind of problem drops a row.
type FactStats struct {
	Rows             int
	LookupMisses     map[string]int // foreign key column -> rows left NULL
	CoercionFailures map[string]int // measure column -> values that did not parse
}

// Fact is the built fact table.
type Fact struct {
	Table *core.Table
	Stats FactStats
}

var factRename = map[string]string{
	SrcOrderID:           "order_number",
	SrcOrderItemQuantity: "order_quantity",
	SrcSales:             "sales",
	SrcOrderProfit:       "order_profit",
	SrcOrderItemDiscount: "discount",
	SrcDaysScheduled:     "days_to_ship_scheduled",
	SrcDaysReal:          "days_to_ship_actual",
	SrcLateDeliveryRisk:  "late_delivery_risk",
}

var factMeasureSources = []string{
	SrcOrderID, SrcOrderItemQuantity, SrcSales, SrcOrderProfit,
	SrcOrderItemDiscount, SrcDaysScheduled, SrcDaysReal, SrcLateDeliveryRisk,
}

// BuildFactOrders builds fact_orders with exactly one row per raw record, in source order.
// A natural key without a dimension entry leaves that foreign key NULL and is counted as a
// lookup miss. A measure that does not parse is NULL and counted as a coercion failure.
// The prediction columns are always NULL.
func BuildFactOrders(ctx context.Context, raw *readers.RawTable, dims Dimensions) (*Fact, error) {
	const stage = "build_" + TableFact

	if dims.Customer == nil || dims.Product == nil || dims.Shipping == nil || dims.Date == nil {
		return nil, core.NewStageError(core.KindConfiguration, stage, TableFact,
			fmt.Errorf("all four dimensions are required"))
	}

	required := append([]string{
		SrcCustomerID, SrcProductID, SrcShippingMode, SrcDeliveryStatus,
		SrcOrderStatus, SrcOrderDate, SrcShipDate,
	}, factMeasureSources...)
	if err := raw.Require(required...); err != nil {
		return nil, err
	}

	stats := FactStats{
		LookupMisses:     make(map[string]int),
		CoercionFailures: make(map[string]int),
	}
	onFailure := func(field string, _ interface{}, _ error) {
		stats.CoercionFailures[field]++
	}

	measures := []core.Transformer{
		transform.Select(factMeasureSources...),
		transform.TrimSpace(factMeasureSources...),
		transform.Rename(factRename),
		transform.Coerce(core.KindInt, onFailure,
			"order_quantity", "days_to_ship_scheduled", "days_to_ship_actual", "late_delivery_risk"),
		transform.Coerce(core.KindDecimal, onFailure, "sales", "order_profit", "discount"),
	}

	records := make([]core.Record, 0, raw.Len())
	for _, record := range raw.Records {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		row, err := core.Chain(ctx, record, measures...)
		if err != nil {
			return nil, core.NewStageError(core.KindConfiguration, stage, TableFact, err)
		}

		resolve := func(column string, keys *KeyMap, natural string, ok bool) {
			if ok {
				if key, found := keys.Lookup(natural); found {
					row[column] = key
					return
				}
			}
			row[column] = nil
			stats.LookupMisses[column]++
		}

		natural, ok := CustomerNaturalKey(record)
		resolve("customer_key", dims.Customer.Keys, natural, ok)
		natural, ok = ProductNaturalKey(record)
		resolve("product_key", dims.Product.Keys, natural, ok)
		natural, ok = ShippingNaturalKey(record)
		resolve("shipping_key", dims.Shipping.Keys, natural, ok)
		natural, ok = DateNaturalKey(record, SrcOrderDate)
		resolve("order_date_key", dims.Date.Keys, natural, ok)
		natural, ok = DateNaturalKey(record, SrcShipDate)
		resolve("ship_date_key", dims.Date.Keys, natural, ok)

		row["late_delivery_predicted"] = nil
		row["prediction_probability"] = nil

		records = append(records, row)
	}
	stats.Rows = len(records)

	return &Fact{
		Table: &core.Table{
			Name:    TableFact,
			Columns: Columns(TableFact),
			Records: records,
		},
		Stats: stats,
	}, nil
}
