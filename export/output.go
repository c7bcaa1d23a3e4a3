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

package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/starload/core"
	"github.com/aaronlmathis/starload/readers"
	"github.com/aaronlmathis/starload/writers"
)

// Format represents a supported export format.
type Format int

const (
	FormatCSV Format = iota
	FormatJSON
	FormatParquet
)

// ParseFormat maps a configuration value to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json", "jsonl":
		return FormatJSON, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return 0, fmt.Errorf("unsupported export format %q (want csv, json or parquet)", s)
	}
}

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatParquet:
		return "parquet"
	default:
		return "csv"
	}
}

// Extension returns the file extension used for a table exported in this format.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".jsonl"
	case FormatParquet:
		return ".parquet"
	default:
		return ".csv"
	}
}

// Location creates a DataSink for one table in a given format.
type Location interface {
	NewSink(ctx context.Context, format Format, table string, columns []core.Column) (core.DataSink, error)
	String() string
}

// Uploader is the subset of the S3 transfer manager used for exports.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// NewLocation resolves a local directory or an s3://bucket/prefix URI.
func NewLocation(ctx context.Context, location string, opts readers.S3Options) (Location, error) {
	if location == "" {
		return nil, fmt.Errorf("export location is empty")
	}
	if !readers.IsS3URI(location) {
		return FileLocation{Dir: location}, nil
	}

	loc, err := readers.ParseS3URI(location)
	if err != nil {
		return nil, err
	}
	client, err := readers.NewS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	return S3Location{
		Bucket:   loc.Bucket,
		Prefix:   loc.Key,
		Uploader: s3manager.NewUploader(client),
	}, nil
}

// FileLocation writes one file per table under a local directory.
type FileLocation struct {
	Dir string
}

func (f FileLocation) String() string {
	return f.Dir
}

// NewSink instantiates a writer for <dir>/<table><ext>.
func (f FileLocation) NewSink(ctx context.Context, format Format, table string, columns []core.Column) (core.DataSink, error) {
	filename := filepath.Join(f.Dir, table+format.Extension())

	if format == FormatParquet {
		return writers.NewParquetWriter(filename, writers.WithParquetColumns(columns))
	}

	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return nil, err
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatCSV:
		return writers.NewCSVWriter(file, writers.WithCSVColumns(columns))
	case FormatJSON:
		return writers.NewJSONWriter(file, writers.WithJSONColumns(columns)), nil
	default:
		file.Close()
		return nil, fmt.Errorf("unsupported format for FileLocation: %s", format)
	}
}

// S3Location writes one object per table under a bucket prefix.
type S3Location struct {
	Bucket   string
	Prefix   string
	Uploader Uploader
}

func (s S3Location) String() string {
	return "s3://" + path.Join(s.Bucket, s.Prefix)
}

func (s S3Location) objectKey(table string, format Format) string {
	return path.Join(s.Prefix, table+format.Extension())
}

type s3WriteCloser struct {
	ctx      context.Context
	buf      *bytes.Buffer
	uploader Uploader
	bucket   string
	key      string
}

func newS3WriteCloser(ctx context.Context, u Uploader, bucket, key string) *s3WriteCloser {
	return &s3WriteCloser{
		ctx:      ctx,
		buf:      &bytes.Buffer{},
		uploader: u,
		bucket:   bucket,
		key:      key,
	}
}

func (s *s3WriteCloser) Write(p []byte) (int, error) { return s.buf.Write(p) }

func (s *s3WriteCloser) Close() error {
	_, err := s.uploader.Upload(s.ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Body:   bytes.NewReader(s.buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

// parquetS3Sink writes to a temp file and uploads it on Close.
type parquetS3Sink struct {
	*writers.ParquetWriter
	ctx      context.Context
	uploader Uploader
	bucket   string
	key      string
	filename string
}

func (p *parquetS3Sink) Close() error {
	defer os.Remove(p.filename)

	if err := p.ParquetWriter.Close(); err != nil {
		return err
	}
	file, err := os.Open(p.filename)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = p.uploader.Upload(p.ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", p.bucket, p.key, err)
	}
	return nil
}

// NewSink creates a writer uploading to S3 when closed.
func (s S3Location) NewSink(ctx context.Context, format Format, table string, columns []core.Column) (core.DataSink, error) {
	if s.Uploader == nil {
		return nil, fmt.Errorf("s3 location %s has no uploader", s)
	}
	key := s.objectKey(table, format)

	switch format {
	case FormatCSV:
		return writers.NewCSVWriter(newS3WriteCloser(ctx, s.Uploader, s.Bucket, key), writers.WithCSVColumns(columns))
	case FormatJSON:
		return writers.NewJSONWriter(newS3WriteCloser(ctx, s.Uploader, s.Bucket, key), writers.WithJSONColumns(columns)), nil
	case FormatParquet:
		tmp, err := os.CreateTemp("", table+"-*.parquet")
		if err != nil {
			return nil, err
		}
		filename := tmp.Name()
		tmp.Close()
		pw, err := writers.NewParquetWriter(filename, writers.WithParquetColumns(columns))
		if err != nil {
			os.Remove(filename)
			return nil, err
		}
		return &parquetS3Sink{
			ParquetWriter: pw,
			ctx:           ctx,
			uploader:      s.Uploader,
			bucket:        s.Bucket,
			key:           key,
			filename:      filename,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported format for S3Location: %s", format)
	}
}

// Export writes every table to the location, one sink per table.
// Any failure is a write error at stage "export" naming the table.
func Export(ctx context.Context, location Location, format Format, tables ...*core.Table) error {
	for _, table := range tables {
		if err := exportTable(ctx, location, format, table); err != nil {
			return core.NewStageError(core.KindWrite, "export", table.Name, err)
		}
	}
	return nil
}

func exportTable(ctx context.Context, location Location, format Format, table *core.Table) error {
	sink, err := location.NewSink(ctx, format, table.Name, table.Columns)
	if err != nil {
		return err
	}

	for _, record := range table.Records {
		if err := ctx.Err(); err != nil {
			sink.Close()
			return err
		}
		if err := sink.Write(ctx, record); err != nil {
			sink.Close()
			return err
		}
	}
	return sink.Close()
}
