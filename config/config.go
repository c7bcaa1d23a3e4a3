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

package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aaronlmathis/starload/export"
	"github.com/aaronlmathis/starload/readers"
	"github.com/aaronlmathis/starload/star"
	"github.com/aaronlmathis/starload/writers"
)

// Config holds all loader configuration
type Config struct {
	Input    InputConfig
	Database DatabaseConfig
	Load     LoadConfig
	Export   ExportConfig
	AWS      AWSConfig
	Log      LogConfig
}

// InputConfig describes the raw extract
type InputConfig struct {
	Path      string // local path or s3://bucket/key
	Encoding  string // latin-1, windows-1252 or utf-8
	Delimiter string
}

// DatabaseConfig holds database connection settings.
// DSN, when set, wins over the individual fields.
type DatabaseConfig struct {
	DSN          string
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	QueryTimeout time.Duration
}

// LoadConfig controls how the star schema is persisted
type LoadConfig struct {
	InsertMode      string // copy or insert
	BatchSize       int
	TruncateCascade bool
	DriftPolicy     string // first_wins, keep_all or reject
}

// ExportConfig enables the optional post-load export. An empty Location disables it.
type ExportConfig struct {
	Location string // directory or s3://bucket/prefix
	Format   string // csv, json or parquet
}

// AWSConfig holds S3 access settings shared by the raw source and the exporter
type AWSConfig struct {
	Region    string
	Profile   string
	Endpoint  string
	PathStyle bool
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

const (
	DefaultInputPath = "data/DataCoSupplyChainDataset.csv"
	DefaultDBName    = "supply_chain_db"
)

// Flags returns the command line flags understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("starload", pflag.ContinueOnError)
	fs.String("config", "", "Path to a TOML config file (default: ./starload.toml if present)")
	fs.String("input", "", "Raw extract path or s3://bucket/key")
	fs.String("encoding", "", "Raw extract encoding (latin-1, utf-8)")
	fs.String("dsn", "", "PostgreSQL connection string")
	fs.String("insert-mode", "", "Persistence mode (copy, insert)")
	fs.Int("batch-size", 0, "Rows per statement or COPY transaction")
	fs.Bool("truncate-cascade", false, "Add CASCADE to the reset TRUNCATE")
	fs.String("drift-policy", "", "Attribute drift policy (first_wins, keep_all, reject)")
	fs.String("export-location", "", "Directory or s3://bucket/prefix for the star table export")
	fs.String("export-format", "", "Export format (csv, json, parquet)")
	fs.String("log-level", "", "Log level (debug, info, warn, error)")
	fs.String("log-format", "", "Log format (console, json)")
	return fs
}

var flagKeys = map[string]string{
	"input":            "input.path",
	"encoding":         "input.encoding",
	"dsn":              "database.dsn",
	"insert-mode":      "load.insert_mode",
	"batch-size":       "load.batch_size",
	"truncate-cascade": "load.truncate_cascade",
	"drift-policy":     "load.drift_policy",
	"export-location":  "export.location",
	"export-format":    "export.format",
	"log-level":        "log.level",
	"log-format":       "log.format",
}

// Load loads configuration from a TOML file, environment variables and flags.
// Priority (highest to lowest):
// 1. Flags that were set explicitly
// 2. Environment variables with STARLOAD_ prefix (e.g., STARLOAD_DATABASE_PASSWORD)
// 3. starload.toml (or the file named by --config)
// 4. Built-in defaults
// fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	configFile := ""
	if fs != nil {
		configFile, _ = fs.GetString("config")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("starload")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("STARLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for flagName, key := range flagKeys {
			if f := fs.Lookup(flagName); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", flagName, err)
				}
			}
		}
	}

	cfg := &Config{
		Input: InputConfig{
			Path:      v.GetString("input.path"),
			Encoding:  v.GetString("input.encoding"),
			Delimiter: v.GetString("input.delimiter"),
		},
		Database: DatabaseConfig{
			DSN:          v.GetString("database.dsn"),
			Host:         v.GetString("database.host"),
			Port:         v.GetInt("database.port"),
			User:         v.GetString("database.user"),
			Password:     v.GetString("database.password"),
			DBName:       v.GetString("database.dbname"),
			SSLMode:      v.GetString("database.sslmode"),
			MaxOpenConns: v.GetInt("database.max_open_conns"),
			MaxIdleConns: v.GetInt("database.max_idle_conns"),
			QueryTimeout: v.GetDuration("database.query_timeout"),
		},
		Load: LoadConfig{
			InsertMode:      v.GetString("load.insert_mode"),
			BatchSize:       v.GetInt("load.batch_size"),
			TruncateCascade: v.GetBool("load.truncate_cascade"),
			DriftPolicy:     v.GetString("load.drift_policy"),
		},
		Export: ExportConfig{
			Location: v.GetString("export.location"),
			Format:   v.GetString("export.format"),
		},
		AWS: AWSConfig{
			Region:    v.GetString("aws.region"),
			Profile:   v.GetString("aws.profile"),
			Endpoint:  v.GetString("aws.endpoint"),
			PathStyle: v.GetBool("aws.path_style"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.Input.Path == "" {
		cfg.Input.Path = DefaultInputPath
	}
	if cfg.Input.Encoding == "" {
		cfg.Input.Encoding = "latin-1"
	}
	if cfg.Input.Delimiter == "" {
		cfg.Input.Delimiter = ","
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 4
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Load.InsertMode == "" {
		cfg.Load.InsertMode = writers.InsertCopy.String()
	}
	if cfg.Load.BatchSize == 0 {
		cfg.Load.BatchSize = 1000
	}
	if cfg.Load.DriftPolicy == "" {
		cfg.Load.DriftPolicy = string(star.DriftFirstWins)
	}
	if cfg.Export.Format == "" {
		cfg.Export.Format = export.FormatCSV.String()
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
}

// Validate rejects unknown enum values and impossible pool settings
func (c *Config) Validate() error {
	switch strings.ToLower(c.Input.Encoding) {
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1", "windows-1252", "cp1252", "utf-8", "utf8":
	default:
		return fmt.Errorf("input.encoding %q is not supported (want latin-1 or utf-8)", c.Input.Encoding)
	}
	if len([]rune(c.Input.Delimiter)) != 1 {
		return fmt.Errorf("input.delimiter must be a single character")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if _, err := writers.ParseInsertMode(c.Load.InsertMode); err != nil {
		return fmt.Errorf("load.insert_mode: %w", err)
	}
	if c.Load.BatchSize < 0 {
		return fmt.Errorf("load.batch_size cannot be negative")
	}
	if _, err := star.ParseDriftPolicy(c.Load.DriftPolicy); err != nil {
		return fmt.Errorf("load.drift_policy: %w", err)
	}
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		return fmt.Errorf("export.format: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("log.format %q is not supported (want console or json)", c.Log.Format)
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (d DatabaseConfig) ConnectionString() string {
	if d.DSN != "" {
		return d.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   d.Host + ":" + strconv.Itoa(d.Port),
		Path:   "/" + d.DBName,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else if d.User != "" {
		u.User = url.User(d.User)
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// S3Options maps the AWS settings onto the reader options
func (a AWSConfig) S3Options() readers.S3Options {
	return readers.S3Options{
		Region:         a.Region,
		Profile:        a.Profile,
		EndpointURL:    a.Endpoint,
		ForcePathStyle: a.PathStyle,
	}
}
