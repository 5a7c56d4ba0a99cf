// Package minio implements the extraction.FileStore port against a
// MinIO/S3-compatible object store. Submitted file references are object
// names within a single configured bucket.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ewhitley/certscan-api/internal/domain"
)

// Config holds the object store connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Store is a MinIO-backed extraction.FileStore.
type Store struct {
	client *miniogo.Client
	bucket string
	logger *slog.Logger
}

// New creates a Store and verifies the bucket exists.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", cfg.Bucket)
	}

	logger.Info("object store connected",
		"endpoint", cfg.Endpoint,
		"bucket", cfg.Bucket)

	return &Store{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Stat implements extraction.FileStore. A missing object reports as
// domain.ErrFileNotFound so admission rejects it with a 404.
func (s *Store) Stat(ctx context.Context, ref string) (int64, error) {
	info, err := s.client.StatObject(ctx, s.bucket, ref, miniogo.StatObjectOptions{})
	if err != nil {
		var resp miniogo.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return 0, fmt.Errorf("%w: %q", domain.ErrFileNotFound, ref)
		}
		return 0, fmt.Errorf("stat object %q: %w", ref, err)
	}
	return info.Size, nil
}

// Fetch implements extraction.FileStore.
func (s *Store) Fetch(ctx context.Context, ref string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ref, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", ref, err)
	}
	defer func() {
		if closeErr := obj.Close(); closeErr != nil {
			s.logger.Warn("failed to close object reader", "ref", ref, "error", closeErr)
		}
	}()

	data, err := io.ReadAll(obj)
	if err != nil {
		var resp miniogo.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %q", domain.ErrFileNotFound, ref)
		}
		return nil, fmt.Errorf("read object %q: %w", ref, err)
	}
	return data, nil
}
