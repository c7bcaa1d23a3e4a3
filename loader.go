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

// Package starload loads the DataCo supply-chain extract into a PostgreSQL star schema.
//
// A run is a full truncate-and-reload, executed sequentially:
//
//	reset -> load raw -> build dimensions -> build fact -> persist -> verify -> export
//
// Example usage:
//
//	loader, err := starload.NewLoader(st, "data/DataCoSupplyChainDataset.csv",
//	    starload.WithLogger(log),
//	    starload.WithBuildOptions(star.WithDriftPolicy(star.DriftReject)),
//	)
//	if err != nil { log.Fatal(err) }
//	result, err := loader.Run(ctx)
package starload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aaronlmathis/starload/core"
	"github.com/aaronlmathis/starload/export"
	"github.com/aaronlmathis/starload/readers"
	"github.com/aaronlmathis/starload/star"
)

// Warehouse is the relational store a Loader writes to.
type Warehouse interface {
	// Reset empties every star relation in one atomic operation.
	Reset(ctx context.Context) error
	// Load persists all rows of one table, all or nothing.
	Load(ctx context.Context, table *core.Table) error
	// Counts returns the row count of every star relation.
	Counts(ctx context.Context) (map[string]int64, error)
}

// Result summarizes a completed run.
type Result struct {
	RawRows    int
	Dimensions star.Dimensions
	Fact       *star.Fact
	Counts     map[string]int64
	Mismatches map[string]CountMismatch
	Exported   bool
	Duration   time.Duration
}

// CountMismatch is a relation whose stored row count differs from the rows built for it.
type CountMismatch struct {
	Built  int64
	Stored int64
}

// Loader runs the star-schema load against a Warehouse.
type Loader struct {
	warehouse    Warehouse
	source       string
	rawOptions   []readers.RawLoadOption
	buildOptions []star.BuildOption
	exportTo     export.Location
	exportFormat export.Format
	logger       *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger. The default discards all output.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithRawOptions passes options through to readers.LoadRaw.
func WithRawOptions(opts ...readers.RawLoadOption) LoaderOption {
	return func(l *Loader) {
		l.rawOptions = append(l.rawOptions, opts...)
	}
}

// WithBuildOptions passes options to the customer and product dimension builders.
func WithBuildOptions(opts ...star.BuildOption) LoaderOption {
	return func(l *Loader) {
		l.buildOptions = append(l.buildOptions, opts...)
	}
}

// WithExport writes every star table to location after a successful load.
func WithExport(location export.Location, format export.Format) LoaderOption {
	return func(l *Loader) {
		l.exportTo = location
		l.exportFormat = format
	}
}

// NewLoader creates a Loader reading the extract at source.
func NewLoader(warehouse Warehouse, source string, opts ...LoaderOption) (*Loader, error) {
	if warehouse == nil {
		return nil, core.NewStageError(core.KindConfiguration, "init", "", fmt.Errorf("warehouse is required"))
	}
	if source == "" {
		return nil, core.NewStageError(core.KindConfiguration, "init", "", fmt.Errorf("source is required"))
	}

	l := &Loader{
		warehouse: warehouse,
		source:    source,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run executes one full reload. Fatal errors abort immediately and are returned as
// *core.StageError. A failed verification is logged, does not stop the export, and is
// returned alongside the result.
func (l *Loader) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	if err := l.stage("reset", func() error { return l.warehouse.Reset(ctx) }); err != nil {
		return nil, err
	}

	var raw *readers.RawTable
	err := l.stage("load_raw", func() error {
		var err error
		raw, err = readers.LoadRaw(ctx, l.source, l.rawOptions...)
		if err != nil {
			return err
		}
		return raw.Require(star.SourceColumns...)
	})
	if err != nil {
		return nil, err
	}
	result.RawRows = raw.Len()
	l.logger.Info("raw extract loaded",
		zap.String("source", l.source),
		zap.Int("rows", raw.Len()),
		zap.Int("columns", len(raw.Columns)),
	)

	dims, err := l.buildDimensions(ctx, raw)
	if err != nil {
		return nil, err
	}
	result.Dimensions = dims

	var fact *star.Fact
	err = l.stage("build_"+star.TableFact, func() error {
		var err error
		fact, err = star.BuildFactOrders(ctx, raw, dims)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.Fact = fact
	l.logFact(fact)

	for _, table := range append(dims.Tables(), fact.Table) {
		err := l.stage("persist", func() error { return l.warehouse.Load(ctx, table) },
			zap.String("relation", table.Name), zap.Int("rows", table.Len()))
		if err != nil {
			return nil, err
		}
	}

	verifyErr := l.verify(ctx, result)

	if l.exportTo != nil {
		err := l.stage("export", func() error {
			return export.Export(ctx, l.exportTo, l.exportFormat, append(dims.Tables(), fact.Table)...)
		}, zap.String("location", l.exportTo.String()), zap.String("format", l.exportFormat.String()))
		if err != nil {
			return nil, err
		}
		result.Exported = true
	}

	result.Duration = time.Since(start)
	l.logger.Info("load complete",
		zap.Int("raw_rows", result.RawRows),
		zap.Int("fact_rows", fact.Table.Len()),
		zap.Duration("duration", result.Duration),
	)
	return result, verifyErr
}

func (l *Loader) buildDimensions(ctx context.Context, raw *readers.RawTable) (star.Dimensions, error) {
	var dims star.Dimensions

	builders := []struct {
		table string
		build func(context.Context, *readers.RawTable, ...star.BuildOption) (*star.Dimension, error)
		dest  **star.Dimension
	}{
		{star.TableCustomer, star.BuildCustomerDimension, &dims.Customer},
		{star.TableProduct, star.BuildProductDimension, &dims.Product},
		{star.TableShipping, star.BuildShippingDimension, &dims.Shipping},
		{star.TableDate, star.BuildDateDimension, &dims.Date},
	}

	for _, b := range builders {
		var dim *star.Dimension
		err := l.stage("build_"+b.table, func() error {
			var err error
			dim, err = b.build(ctx, raw, l.buildOptions...)
			return err
		})
		if err != nil {
			return star.Dimensions{}, err
		}
		*b.dest = dim
		l.logDimension(b.table, dim)
	}
	return dims, nil
}

// stage runs fn with start/finish logging. Errors outside the StageError taxonomy are
// wrapped with the kind that matches the stage.
func (l *Loader) stage(name string, fn func() error, fields ...zap.Field) error {
	start := time.Now()
	l.logger.Debug("stage started", append([]zap.Field{zap.String("stage", name)}, fields...)...)

	err := fn()
	fields = append(fields, zap.String("stage", name), zap.Duration("duration", time.Since(start)))
	if err != nil {
		err = asStageError(name, err)
		l.logger.Error("stage failed", append(fields, zap.Error(err))...)
		return err
	}
	l.logger.Info("stage finished", fields...)
	return nil
}

func asStageError(stage string, err error) error {
	var se *core.StageError
	if errors.As(err, &se) {
		return err
	}
	return core.NewStageError(stageKind(stage), stage, "", err)
}

func stageKind(stage string) core.ErrorKind {
	switch {
	case stage == "load_raw":
		return core.KindRead
	case stage == "verify":
		return core.KindVerification
	case strings.HasPrefix(stage, "build_"):
		return core.KindConfiguration
	default:
		return core.KindWrite
	}
}

func (l *Loader) logDimension(table string, dim *star.Dimension) {
	l.logger.Info("dimension built",
		zap.String("relation", table),
		zap.Int("rows", dim.Table.Len()),
		zap.Int("candidates", dim.Stats.Candidates),
		zap.Int("duplicates", dim.Stats.Duplicates),
	)
	if dim.Stats.Skipped > 0 {
		l.logger.Warn("candidates without a natural key skipped",
			zap.String("relation", table),
			zap.Int("skipped", dim.Stats.Skipped),
		)
	}
	if len(dim.Stats.DriftedKeys) > 0 {
		l.logger.Warn("attribute drift detected",
			zap.String("relation", table),
			zap.Int("keys", len(dim.Stats.DriftedKeys)),
			zap.Int("dropped", dim.Stats.Drifted),
			zap.Strings("sample", sample(dim.Stats.DriftedKeys, 10)),
		)
	}
	if conflicts := dim.Keys.Conflicts(); len(conflicts) > 0 {
		samples := make([]string, 0, min(len(conflicts), 10))
		for _, c := range conflicts[:min(len(conflicts), 10)] {
			samples = append(samples, c.String())
		}
		l.logger.Warn("natural key conflicts, first surrogate key kept",
			zap.String("relation", table),
			zap.Int("conflicts", len(conflicts)),
			zap.Strings("sample", samples),
		)
	}
}

func (l *Loader) logFact(fact *star.Fact) {
	l.logger.Info("fact built",
		zap.String("relation", star.TableFact),
		zap.Int("rows", fact.Stats.Rows),
	)
	if len(fact.Stats.LookupMisses) > 0 {
		l.logger.Warn("lookup misses, foreign keys left NULL",
			zap.String("relation", star.TableFact),
			zap.Any("misses", fact.Stats.LookupMisses),
		)
	}
	if len(fact.Stats.CoercionFailures) > 0 {
		l.logger.Warn("unparseable measures stored as NULL",
			zap.String("relation", star.TableFact),
			zap.Any("failures", fact.Stats.CoercionFailures),
		)
	}
}

// verify compares stored counts with the rows built in this run.
func (l *Loader) verify(ctx context.Context, result *Result) error {
	counts, err := l.warehouse.Counts(ctx)
	if err != nil {
		err = asStageError("verify", err)
		l.logger.Warn("verification failed", zap.Error(err))
		return err
	}
	result.Counts = counts

	built := map[string]int{
		star.TableCustomer: result.Dimensions.Customer.Table.Len(),
		star.TableProduct:  result.Dimensions.Product.Table.Len(),
		star.TableShipping: result.Dimensions.Shipping.Table.Len(),
		star.TableDate:     result.Dimensions.Date.Table.Len(),
		star.TableFact:     result.Fact.Table.Len(),
	}

	for _, table := range star.LoadOrder {
		stored := counts[table]
		l.logger.Info("relation count", zap.String("relation", table), zap.Int64("rows", stored))
		if stored != int64(built[table]) {
			if result.Mismatches == nil {
				result.Mismatches = make(map[string]CountMismatch)
			}
			result.Mismatches[table] = CountMismatch{Built: int64(built[table]), Stored: stored}
			l.logger.Warn("stored row count differs from built rows",
				zap.String("relation", table),
				zap.Int("built", built[table]),
				zap.Int64("stored", stored),
			)
		}
	}
	if counts[star.TableFact] != int64(result.RawRows) {
		l.logger.Warn("fact row count differs from raw row count",
			zap.Int("raw", result.RawRows),
			zap.Int64("fact", counts[star.TableFact]),
		)
	}
	return nil
}

func sample(values []string, n int) []string {
	if len(values) <= n {
		return values
	}
	return values[:n]
}
