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
	"fmt"
	"strings"
)

// KeyConflict records an attempt to map a natural key that was already mapped.
type KeyConflict struct {
	NaturalKey string
	Existing   int64
	Rejected   int64
}

func (c KeyConflict) String() string {
	return fmt.Sprintf("natural key %q already mapped to %d, ignored %d", c.NaturalKey, c.Existing, c.Rejected)
}

// KeyMap maps natural keys to surrogate keys. The first mapping for a natural key wins;
// later ones are kept as conflicts instead of overwriting it.
type KeyMap struct {
	keys      map[string]int64
	conflicts []KeyConflict
}

// NewKeyMap creates an empty KeyMap sized for n keys.
func NewKeyMap(n int) *KeyMap {
	return &KeyMap{keys: make(map[string]int64, n)}
}

// Insert maps naturalKey to surrogateKey. It returns false, recording a conflict, when
// naturalKey is already mapped.
func (m *KeyMap) Insert(naturalKey string, surrogateKey int64) bool {
	if existing, ok := m.keys[naturalKey]; ok {
		m.conflicts = append(m.conflicts, KeyConflict{
			NaturalKey: naturalKey,
			Existing:   existing,
			Rejected:   surrogateKey,
		})
		return false
	}
	m.keys[naturalKey] = surrogateKey
	return true
}

// Lookup returns the surrogate key for naturalKey.
func (m *KeyMap) Lookup(naturalKey string) (int64, bool) {
	key, ok := m.keys[naturalKey]
	return key, ok
}

// Len returns the number of mapped natural keys.
func (m *KeyMap) Len() int {
	return len(m.keys)
}

// Conflicts returns the rejected insertions in the order they happened.
func (m *KeyMap) Conflicts() []KeyConflict {
	return m.conflicts
}

// DriftPolicy decides what happens when one natural key arrives with differing attributes.
type DriftPolicy string

const (
	// DriftFirstWins keeps the first-seen attributes and drops later variants.
	DriftFirstWins DriftPolicy = "first_wins"
	// DriftKeepAll keeps every distinct variant as its own dimension row.
	DriftKeepAll DriftPolicy = "keep_all"
	// DriftReject fails the build on the first drifting natural key.
	DriftReject DriftPolicy = "reject"
)

// ParseDriftPolicy parses a configured policy name. The empty string selects DriftFirstWins.
func ParseDriftPolicy(name string) (DriftPolicy, error) {
	switch p := DriftPolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return DriftFirstWins, nil
	case DriftFirstWins, DriftKeepAll, DriftReject:
		return p, nil
	default:
		return "", fmt.Errorf("unknown drift policy %q (want first_wins, keep_all or reject)", name)
	}
}
