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

	"github.com/aaronlmathis/starload/core"
	"github.com/aaronlmathis/starload/readers"
	"github.com/aaronlmathis/starload/transform"
)

var productRename = map[string]string{
	SrcProductID:      "product_id",
	SrcProductName:    "product_name",
	SrcCategoryName:   "category_name",
	SrcDepartmentName: "department_name",
	SrcProductPrice:   "product_price",
}

// BuildProductDimension builds dim_product keyed by the product card id.
// The price is part of the row, so a repriced product drifts under its natural key.
func BuildProductDimension(ctx context.Context, raw *readers.RawTable, options ...BuildOption) (*Dimension, error) {
	required := []string{SrcProductID, SrcProductName, SrcCategoryName, SrcDepartmentName, SrcProductPrice}

	spec := dimensionSpec{
		table:    TableProduct,
		columns:  productColumns,
		required: required,
		extract: project(
			transform.Select(required...),
			transform.TrimSpace(required...),
			transform.Rename(productRename),
			// An unparseable price is kept as NULL rather than failing the dimension.
			transform.Coerce(core.KindDecimal, func(string, interface{}, error) {}, "product_price"),
		),
		naturalKey: func(candidate core.Record) (string, bool) {
			return compositeKey(candidate, "product_id")
		},
		drift: true,
	}

	return buildDimension(ctx, raw, spec, buildOptions(options))
}

// ProductNaturalKey returns the dim_product lookup key of a raw record.
func ProductNaturalKey(record core.Record) (string, bool) {
	return trimmedKey(record, SrcProductID)
}
