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
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aaronlmathis/starload/core"
)

// DateKeyLayout is the canonical string form of a calendar date used as a lookup key.
const DateKeyLayout = "2006-01-02"

// dateLayouts are tried in order when parsing a source date value.
var dateLayouts = []string{
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
	DateKeyLayout,
}

// CoerceValue converts value to the Go type backing kind.
func CoerceValue(kind core.ColumnKind, value interface{}) (interface{}, error) {
	switch kind {
	case core.KindString:
		s, ok := ToString(value)
		if !ok {
			return nil, fmt.Errorf("cannot convert %T to string", value)
		}
		return s, nil
	case core.KindInt:
		return ToInt64(value)
	case core.KindFloat:
		return ToFloat64(value)
	case core.KindDecimal:
		return ToDecimal(value)
	case core.KindBool:
		return ToBool(value)
	case core.KindDate:
		return ParseDate(value)
	default:
		return nil, fmt.Errorf("unsupported column kind: %d", int(kind))
	}
}

// ToString renders value as a string. It reports false for nil.
func ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case time.Time:
		return v.Format(DateKeyLayout), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// ToInt64 converts value to int64. Integral float text such as "3.0" is accepted.
func ToInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as integer", v)
		}
		if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, fmt.Errorf("cannot parse %q as integer: not integral", v)
		}
		return int64(f), nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("cannot convert %v to integer: not integral", v)
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", value)
	}
}

// ToFloat64 converts value to float64.
func ToFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case decimal.Decimal:
		return v.InexactFloat64(), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", value)
	}
}

// ToBool converts value to bool.
func ToBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to bool", value)
	}
}

// ToDecimal converts value to an exact decimal.
func ToDecimal(value interface{}) (decimal.Decimal, error) {
	switch v := value.(type) {
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case decimal.Decimal:
		return v, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("cannot convert %T to decimal", value)
	}
}

// ParseDate parses a source timestamp and truncates it to its calendar date in UTC.
func ParseDate(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return truncateDay(v), nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return truncateDay(t), nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as date", v)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to date", value)
	}
}

// DateKey returns the canonical lookup key for the calendar date of value.
func DateKey(value interface{}) (string, error) {
	t, err := ParseDate(value)
	if err != nil {
		return "", err
	}
	return t.Format(DateKeyLayout), nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
