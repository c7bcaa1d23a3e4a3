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

package readers

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3ReaderError provides structured error information for S3 operations
type S3ReaderError struct {
	Op  string // Operation that failed (e.g., "parse_uri", "create_aws_config", "get_object")
	Err error  // Underlying error
}

func (e *S3ReaderError) Error() string {
	return fmt.Sprintf("s3 reader %s: %v", e.Op, e.Err)
}

func (e *S3ReaderError) Unwrap() error {
	return e.Err
}

// S3Options configures access to S3 or an S3-compatible endpoint.
type S3Options struct {
	Region         string          // AWS region
	Profile        string          // AWS profile to use
	Credentials    aws.Credentials // Explicit credentials
	EndpointURL    string          // Custom S3 endpoint (for S3-compatible services)
	ForcePathStyle bool            // Use path-style addressing
}

// S3Location is a parsed s3://bucket/key URI.
type S3Location struct {
	Bucket string
	Key    string
}

// IsS3URI reports whether location uses the s3:// scheme.
func IsS3URI(location string) bool {
	return strings.HasPrefix(strings.ToLower(location), "s3://")
}

// ParseS3URI splits an s3://bucket/key URI. The key may be empty (bucket root).
func ParseS3URI(location string) (S3Location, error) {
	u, err := url.Parse(location)
	if err != nil {
		return S3Location{}, &S3ReaderError{Op: "parse_uri", Err: err}
	}
	if !strings.EqualFold(u.Scheme, "s3") {
		return S3Location{}, &S3ReaderError{Op: "parse_uri", Err: fmt.Errorf("not an s3 uri: %s", location)}
	}
	if u.Host == "" {
		return S3Location{}, &S3ReaderError{Op: "parse_uri", Err: fmt.Errorf("bucket is required: %s", location)}
	}
	return S3Location{Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}, nil
}

// NewS3Client creates an S3 client from the default AWS configuration chain plus overrides.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	cfg, err := createAWSConfig(ctx, opts)
	if err != nil {
		return nil, &S3ReaderError{Op: "create_aws_config", Err: err}
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
		o.UsePathStyle = opts.ForcePathStyle
	}), nil
}

// createAWSConfig creates AWS configuration from options
func createAWSConfig(ctx context.Context, opts S3Options) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{}

	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}

	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, err
	}

	// Override with explicit credentials if provided
	if opts.Credentials.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				opts.Credentials.AccessKeyID,
				opts.Credentials.SecretAccessKey,
				opts.Credentials.SessionToken,
			),
		)
	}

	return cfg, nil
}

// OpenSource opens the raw extract, either a local path or an s3://bucket/key object.
func OpenSource(ctx context.Context, location string, opts S3Options) (io.ReadCloser, error) {
	if !IsS3URI(location) {
		return os.Open(location)
	}

	loc, err := ParseS3URI(location)
	if err != nil {
		return nil, err
	}
	if loc.Key == "" {
		return nil, &S3ReaderError{Op: "parse_uri", Err: fmt.Errorf("object key is required: %s", location)}
	}

	client, err := NewS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, &S3ReaderError{Op: "get_object", Err: fmt.Errorf("failed to get object %s: %w", loc.Key, err)}
	}

	return result.Body, nil
}
