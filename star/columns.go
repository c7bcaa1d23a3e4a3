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

import "github.com/aaronlmathis/starload/core"

// Source columns of the DataCo supply-chain extract.
const (
	SrcCustomerID      = "Customer Id"
	SrcCustomerFname   = "Customer Fname"
	SrcCustomerLname   = "Customer Lname"
	SrcCustomerSegment = "Customer Segment"
	SrcCustomerCity    = "Customer City"
	SrcCustomerState   = "Customer State"
	SrcCustomerCountry = "Customer Country"
	SrcOrderRegion     = "Order Region"

	SrcProductID      = "Product Card Id"
	SrcProductName    = "Product Name"
	SrcCategoryName   = "Category Name"
	SrcDepartmentName = "Department Name"
	SrcProductPrice   = "Product Price"

	SrcShippingMode   = "Shipping Mode"
	SrcDeliveryStatus = "Delivery Status"
	SrcOrderStatus    = "Order Status"

	SrcOrderDate = "order date (DateOrders)"
	SrcShipDate  = "shipping date (DateOrders)"

	SrcOrderID           = "Order Id"
	SrcOrderItemQuantity = "Order Item Quantity"
	SrcSales             = "Sales"
	SrcOrderProfit       = "Order Profit Per Order"
	SrcOrderItemDiscount = "Order Item Discount"
	SrcDaysScheduled     = "Days for shipment (scheduled)"
	SrcDaysReal          = "Days for shipping (real)"
	SrcLateDeliveryRisk  = "Late_delivery_risk"
)

// SourceColumns lists every source column read by the builders.
var SourceColumns = []string{
	SrcCustomerID, SrcCustomerFname, SrcCustomerLname, SrcCustomerSegment,
	SrcCustomerCity, SrcCustomerState, SrcCustomerCountry, SrcOrderRegion,
	SrcProductID, SrcProductName, SrcCategoryName, SrcDepartmentName, SrcProductPrice,
	SrcShippingMode, SrcDeliveryStatus, SrcOrderStatus,
	SrcOrderDate, SrcShipDate,
	SrcOrderID, SrcOrderItemQuantity, SrcSales, SrcOrderProfit, SrcOrderItemDiscount,
	SrcDaysScheduled, SrcDaysReal, SrcLateDeliveryRisk,
}

// Warehouse relation names.
const (
	TableCustomer = "dim_customer"
	TableProduct  = "dim_product"
	TableShipping = "dim_shipping"
	TableDate     = "dim_date"
	TableFact     = "fact_orders"
)

// ResetOrder lists every relation, fact first, for a single truncate statement.
var ResetOrder = []string{TableFact, TableCustomer, TableProduct, TableShipping, TableDate}

// LoadOrder lists every relation in foreign-key dependency order.
var LoadOrder = []string{TableCustomer, TableProduct, TableShipping, TableDate, TableFact}

var customerColumns = []core.Column{
	{Name: "customer_key", Kind: core.KindInt},
	{Name: "customer_id", Kind: core.KindString},
	{Name: "customer_name", Kind: core.KindString, Nullable: true},
	{Name: "customer_segment", Kind: core.KindString, Nullable: true},
	{Name: "customer_city", Kind: core.KindString, Nullable: true},
	{Name: "customer_state", Kind: core.KindString, Nullable: true},
	{Name: "customer_country", Kind: core.KindString, Nullable: true},
	{Name: "customer_region", Kind: core.KindString, Nullable: true},
}

var productColumns = []core.Column{
	{Name: "product_key", Kind: core.KindInt},
	{Name: "product_id", Kind: core.KindString},
	{Name: "product_name", Kind: core.KindString, Nullable: true},
	{Name: "category_name", Kind: core.KindString, Nullable: true},
	{Name: "department_name", Kind: core.KindString, Nullable: true},
	{Name: "product_price", Kind: core.KindDecimal, Nullable: true},
}

var shippingColumns = []core.Column{
	{Name: "shipping_key", Kind: core.KindInt},
	{Name: "shipping_mode", Kind: core.KindString},
	{Name: "delivery_status", Kind: core.KindString},
	{Name: "order_status", Kind: core.KindString},
}

var dateColumns = []core.Column{
	{Name: "date_key", Kind: core.KindInt},
	{Name: "full_date", Kind: core.KindDate},
	{Name: "day_of_week", Kind: core.KindString},
	{Name: "day_of_month", Kind: core.KindInt},
	{Name: "month", Kind: core.KindInt},
	{Name: "month_name", Kind: core.KindString},
	{Name: "quarter", Kind: core.KindInt},
	{Name: "year", Kind: core.KindInt},
	{Name: "is_weekend", Kind: core.KindBool},
}

var factColumns = []core.Column{
	{Name: "order_number", Kind: core.KindString, Nullable: true},
	{Name: "customer_key", Kind: core.KindInt, Nullable: true},
	{Name: "product_key", Kind: core.KindInt, Nullable: true},
	{Name: "shipping_key", Kind: core.KindInt, Nullable: true},
	{Name: "order_date_key", Kind: core.KindInt, Nullable: true},
	{Name: "ship_date_key", Kind: core.KindInt, Nullable: true},
	{Name: "order_quantity", Kind: core.KindInt, Nullable: true},
	{Name: "sales", Kind: core.KindDecimal, Nullable: true},
	{Name: "order_profit", Kind: core.KindDecimal, Nullable: true},
	{Name: "discount", Kind: core.KindDecimal, Nullable: true},
	{Name: "days_to_ship_scheduled", Kind: core.KindInt, Nullable: true},
	{Name: "days_to_ship_actual", Kind: core.KindInt, Nullable: true},
	{Name: "late_delivery_risk", Kind: core.KindInt, Nullable: true},
	{Name: "late_delivery_predicted", Kind: core.KindBool, Nullable: true},
	{Name: "prediction_probability", Kind: core.KindFloat, Nullable: true},
}

// Columns returns a copy of the column layout of a warehouse relation, or nil for an unknown name.
func Columns(table string) []core.Column {
	var cols []core.Column
	switch table {
	case TableCustomer:
		cols = customerColumns
	case TableProduct:
		cols = productColumns
	case TableShipping:
		cols = shippingColumns
	case TableDate:
		cols = dateColumns
	case TableFact:
		cols = factColumns
	default:
		return nil
	}
	return append([]core.Column(nil), cols...)
}
