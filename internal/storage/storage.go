// Package storage persists uploaded PDF blobs in S3-compatible object
// storage. Objects are content-addressed by sha256 so re-uploading the
// same document is idempotent.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/config"
)

// PutResult describes a stored blob.
type PutResult struct {
	StorageKey string
	Size       int64
	SHA256     []byte
}

// BlobStorage stores and retrieves uploaded document content.
type BlobStorage interface {
	// Put stores a blob and returns its content-addressed key.
	Put(ctx context.Context, r io.Reader, contentType string) (PutResult, error)

	// Get opens the blob for streaming; the caller closes it.
	Get(ctx context.Context, storageKey string) (io.ReadCloser, int64, string, error)

	// Delete removes the blob.
	Delete(ctx context.Context, storageKey string) error
}

// S3Storage implements BlobStorage on a MinIO/S3 bucket.
type S3Storage struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewS3Storage connects to the configured endpoint and ensures the bucket
// exists.
func NewS3Storage(cfg *config.Config, logger *zap.Logger) (BlobStorage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{Region: cfg.S3Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	logger.Info("Connected to blob storage",
		zap.String("endpoint", cfg.S3Endpoint),
		zap.String("bucket", cfg.S3Bucket),
	)
	return &S3Storage{client: client, bucket: cfg.S3Bucket, logger: logger}, nil
}

// Put stores the stream under "sha256/<hex>". Uploads are buffered so the
// hash is known before the object key is chosen.
func (s *S3Storage) Put(ctx context.Context, r io.Reader, contentType string) (PutResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return PutResult{}, fmt.Errorf("failed to read upload: %w", err)
	}

	sum := sha256.Sum256(data)
	key := fmt.Sprintf("sha256/%x", sum)

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return PutResult{}, fmt.Errorf("failed to store blob: %w", err)
	}

	s.logger.Debug("Stored blob", zap.String("key", key), zap.Int("size", len(data)))
	return PutResult{StorageKey: key, Size: int64(len(data)), SHA256: sum[:]}, nil
}

// Get opens the blob and returns its stream, length and content type.
func (s *S3Storage) Get(ctx context.Context, storageKey string) (io.ReadCloser, int64, string, error) {
	info, err := s.client.StatObject(ctx, s.bucket, storageKey, minio.StatObjectOptions{})
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to stat blob: %w", err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, storageKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to open blob: %w", err)
	}
	return obj, info.Size, info.ContentType, nil
}

// Delete removes the blob.
func (s *S3Storage) Delete(ctx context.Context, storageKey string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, storageKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}
