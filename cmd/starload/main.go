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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/aaronlmathis/starload"
	"github.com/aaronlmathis/starload/config"
	"github.com/aaronlmathis/starload/core"
	"github.com/aaronlmathis/starload/export"
	"github.com/aaronlmathis/starload/logger"
	"github.com/aaronlmathis/starload/readers"
	"github.com/aaronlmathis/starload/star"
	"github.com/aaronlmathis/starload/store"
	"github.com/aaronlmathis/starload/writers"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := config.Flags()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "starload: %v\n", err)
		return 2
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "starload: failed to load configuration: %v\n", err)
		return 1
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "starload: failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := load(ctx, cfg, log); err != nil {
		var se *core.StageError
		if errors.As(err, &se) {
			log.Error("load failed",
				zap.String("kind", se.Kind.String()),
				zap.String("stage", se.Stage),
				zap.String("relation", se.Relation),
				zap.Error(se.Err),
			)
		} else {
			log.Error("load failed", zap.Error(err))
		}
		return 1
	}
	return 0
}

func load(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	insertMode, err := writers.ParseInsertMode(cfg.Load.InsertMode)
	if err != nil {
		return core.NewStageError(core.KindConfiguration, "init", "", err)
	}
	drift, err := star.ParseDriftPolicy(cfg.Load.DriftPolicy)
	if err != nil {
		return core.NewStageError(core.KindConfiguration, "init", "", err)
	}

	log.Info("Starting star schema load",
		zap.String("input", cfg.Input.Path),
		zap.String("database", cfg.Database.DBName),
		zap.String("insert_mode", insertMode.String()),
		zap.String("drift_policy", string(drift)),
	)

	db, err := store.Open(ctx, cfg.Database.ConnectionString(), store.PoolOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		PingTimeout:  cfg.Database.QueryTimeout,
	})
	if err != nil {
		return err
	}
	st := store.New(db, store.Options{
		InsertMode:      insertMode,
		BatchSize:       cfg.Load.BatchSize,
		TruncateCascade: cfg.Load.TruncateCascade,
		QueryTimeout:    cfg.Database.QueryTimeout,
	})
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	s3opts := cfg.AWS.S3Options()
	delimiter := []rune(cfg.Input.Delimiter)[0]

	opts := []starload.LoaderOption{
		starload.WithLogger(log),
		starload.WithBuildOptions(star.WithDriftPolicy(drift)),
		starload.WithRawOptions(
			readers.WithRawS3Options(s3opts),
			readers.WithRawCSVOptions(
				readers.WithCSVEncoding(cfg.Input.Encoding),
				readers.WithCSVComma(delimiter),
			),
		),
	}

	if cfg.Export.Location != "" {
		format, err := export.ParseFormat(cfg.Export.Format)
		if err != nil {
			return core.NewStageError(core.KindConfiguration, "init", "", err)
		}
		location, err := export.NewLocation(ctx, cfg.Export.Location, s3opts)
		if err != nil {
			return core.NewStageError(core.KindConfiguration, "init", cfg.Export.Location, err)
		}
		opts = append(opts, starload.WithExport(location, format))
	}

	loader, err := starload.NewLoader(st, cfg.Input.Path, opts...)
	if err != nil {
		return err
	}

	result, err := loader.Run(ctx)
	if err != nil {
		return err
	}

	for _, table := range star.LoadOrder {
		log.Info("Loaded relation", zap.String("relation", table), zap.Int64("rows", result.Counts[table]))
	}
	return nil
}
