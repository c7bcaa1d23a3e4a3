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

package core

import (
	"errors"
	"fmt"
)

// This file contains the run-level error taxonomy.
//
// Component errors (CSVReaderError, PostgresWriterError, ...) describe what failed inside a
// component; StageError adds which stage of the load failed and on which relation, and
// classifies the failure so callers can decide between aborting and warning.

// ErrorKind classifies a stage failure.
type ErrorKind int

const (
	// KindConnection means the warehouse could not be reached. Fatal, before any write.
	KindConnection ErrorKind = iota + 1
	// KindRead means the source extract is missing, unreadable or malformed. Fatal.
	KindRead
	// KindConfiguration means the source does not match the expected layout, or the
	// configuration itself is invalid. Fatal.
	KindConfiguration
	// KindWrite means a relation could not be reset, persisted or exported. Fatal.
	KindWrite
	// KindVerification means the post-load count query failed. Reported as a warning.
	KindVerification
)

// Sentinel errors matched by StageError.Is.
var (
	ErrConnection    = errors.New("connection error")
	ErrRead          = errors.New("read error")
	ErrConfiguration = errors.New("configuration error")
	ErrWrite         = errors.New("write error")
	ErrVerification  = errors.New("verification error")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConnection:
		return ErrConnection
	case KindRead:
		return ErrRead
	case KindConfiguration:
		return ErrConfiguration
	case KindWrite:
		return ErrWrite
	case KindVerification:
		return ErrVerification
	default:
		return nil
	}
}

// String returns the kind's short name.
func (k ErrorKind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return "unknown error"
}

// StageError wraps a failure with the stage and relation it occurred in.
type StageError struct {
	Kind     ErrorKind
	Stage    string // e.g. "connect", "reset", "load_raw", "build", "persist", "verify", "export"
	Relation string // target relation or source path, empty when not applicable
	Err      error
}

func (e *StageError) Error() string {
	if e.Relation != "" {
		return fmt.Sprintf("%s: stage %s (%s): %v", e.Kind, e.Stage, e.Relation, e.Err)
	}
	return fmt.Sprintf("%s: stage %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *StageError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Fatal reports whether the error must abort the run.
func (e *StageError) Fatal() bool {
	return e.Kind != KindVerification
}

// NewStageError builds a StageError; it returns nil when err is nil.
func NewStageError(kind ErrorKind, stage, relation string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Kind: kind, Stage: stage, Relation: relation, Err: err}
}

// IsFatal reports whether err aborts a run. Errors outside the taxonomy are fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Fatal()
	}
	return true
}
