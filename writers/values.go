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
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aaronlmathis/starload/core"
)

const dateLayout = "2006-01-02"

// formatText renders a value for text outputs. NULL renders as the empty string.
func formatText(col core.Column, value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case decimal.Decimal:
		return v.String()
	case time.Time:
		if col.Kind == core.KindDate {
			return v.Format(dateLayout)
		}
		return v.Format(time.RFC3339)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// jsonValue converts a value to its JSON representation. Decimals stay exact as strings.
func jsonValue(col core.Column, value interface{}) interface{} {
	switch v := value.(type) {
	case decimal.Decimal:
		return v.String()
	case time.Time:
		if col.Kind == core.KindDate {
			return v.Format(dateLayout)
		}
		return v
	default:
		return v
	}
}
