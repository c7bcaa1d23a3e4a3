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

var customerRename = map[string]string{
	SrcCustomerID:      "customer_id",
	SrcCustomerSegment: "customer_segment",
	SrcCustomerCity:    "customer_city",
	SrcCustomerState:   "customer_state",
	SrcCustomerCountry: "customer_country",
	SrcOrderRegion:     "customer_region",
}

// BuildCustomerDimension builds dim_customer keyed by the source customer id.
// customer_name is the first and last name joined by a space.
func BuildCustomerDimension(ctx context.Context, raw *readers.RawTable, options ...BuildOption) (*Dimension, error) {
	required := []string{
		SrcCustomerID, SrcCustomerFname, SrcCustomerLname, SrcCustomerSegment,
		SrcCustomerCity, SrcCustomerState, SrcCustomerCountry, SrcOrderRegion,
	}

	spec := dimensionSpec{
		table:    TableCustomer,
		columns:  customerColumns,
		required: required,
		extract: project(
			transform.Select(required...),
			transform.TrimSpace(required...),
			transform.Concat("customer_name", " ", SrcCustomerFname, SrcCustomerLname),
			transform.RemoveFields(SrcCustomerFname, SrcCustomerLname),
			transform.Rename(customerRename),
		),
		naturalKey: func(candidate core.Record) (string, bool) {
			return compositeKey(candidate, "customer_id")
		},
		drift: true,
	}

	return buildDimension(ctx, raw, spec, buildOptions(options))
}

// CustomerNaturalKey returns the dim_customer lookup key of a raw record.
func CustomerNaturalKey(record core.Record) (string, bool) {
	return trimmedKey(record, SrcCustomerID)
}
