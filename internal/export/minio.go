// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// KeyPrefix is the object key prefix for uploaded datasets.
const KeyPrefix = "cleaned"

// MinioConfig configures an S3-compatible sink.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Validate reports missing required settings.
func (c MinioConfig) Validate() error {
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required"))
	}
	if c.Bucket == "" {
		errs = append(errs, errors.New("bucket is required"))
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		errs = append(errs, errors.New("access key and secret key are required"))
	}
	return errors.Join(errs...)
}

// objectStore is the subset of *minio.Client the sink uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioSink uploads cleaned datasets to object storage under
// cleaned/<run-id>/<name>.csv. The bucket is created on first use.
type MinioSink struct {
	client objectStore
	bucket string
	region string

	mu    sync.Mutex
	ready bool
}

// NewMinioSink connects a sink to the configured endpoint.
func NewMinioSink(cfg MinioConfig) (*MinioSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("minio config: %w", err)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return newMinioSink(client, cfg.Bucket, cfg.Region), nil
}

func newMinioSink(client objectStore, bucket, region string) *MinioSink {
	return &MinioSink{client: client, bucket: bucket, region: region}
}

// Key returns the object key for a dataset of a run.
func Key(runID, name string) string {
	return path.Join(KeyPrefix, runID, ObjectName(name)+".csv")
}

// Put implements Sink. It returns an s3:// URI for the CSV object.
func (s *MinioSink) Put(ctx context.Context, obj Object) (string, error) {
	if obj.Table == nil {
		return "", fmt.Errorf("export %s: no table", obj.Name)
	}
	if obj.RunID == "" {
		return "", errors.New("export: run id is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket %s: %w", s.bucket, err)
	}

	data, err := obj.Table.CSV()
	if err != nil {
		return "", fmt.Errorf("encode csv: %w", err)
	}
	key := Key(obj.RunID, obj.Name)
	if err := s.put(ctx, key, data, "text/csv"); err != nil {
		return "", err
	}
	if obj.Report != nil {
		if err := s.put(ctx, path.Join(KeyPrefix, obj.RunID, "report.md"), obj.Report, "text/markdown"); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func (s *MinioSink) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *MinioSink) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return err
		}
	}
	s.ready = true
	return nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
