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

// BuildShippingDimension builds dim_shipping from the distinct
// (shipping mode, delivery status, order status) triples. The triple is the natural key.
func BuildShippingDimension(ctx context.Context, raw *readers.RawTable, options ...BuildOption) (*Dimension, error) {
	required := []string{SrcShippingMode, SrcDeliveryStatus, SrcOrderStatus}

	spec := dimensionSpec{
		table:    TableShipping,
		columns:  shippingColumns,
		required: required,
		extract: project(
			transform.Select(required...),
			transform.TrimSpace(required...),
			transform.Rename(map[string]string{
				SrcShippingMode:   "shipping_mode",
				SrcDeliveryStatus: "delivery_status",
				SrcOrderStatus:    "order_status",
			}),
		),
		naturalKey: func(candidate core.Record) (string, bool) {
			return compositeKey(candidate, "shipping_mode", "delivery_status", "order_status")
		},
	}

	return buildDimension(ctx, raw, spec, buildOptions(options))
}

// ShippingNaturalKey returns the "mode|delivery|status" lookup key of a raw record.
func ShippingNaturalKey(record core.Record) (string, bool) {
	trimmed, _ := transform.TrimSpace(SrcShippingMode, SrcDeliveryStatus, SrcOrderStatus).
		Transform(context.Background(), record)
	return compositeKey(trimmed, SrcShippingMode, SrcDeliveryStatus, SrcOrderStatus)
}
