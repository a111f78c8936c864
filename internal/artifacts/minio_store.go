// Package artifacts persists exported report files in S3-compatible
// object storage so they can be re-downloaded without regenerating.
package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultURLExpiry is how long presigned download links stay valid.
const DefaultURLExpiry = 24 * time.Hour

// Store wraps a minio client scoped to one bucket.
type Store struct {
	client *minio.Client
	bucket string
}

// Config holds object storage connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// New connects to object storage and ensures the artifact bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	store := &Store{client: client, bucket: cfg.Bucket}
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// PutReport stores an exported report and returns its object key. Objects
// are keyed by project and run so re-exports of the same run overwrite
// rather than accumulate.
func (s *Store) PutReport(ctx context.Context, projectID, runID, filename, mimeType string, data []byte) (string, error) {
	key := ObjectKey(projectID, runID, filename)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("put report %s: %w", key, err)
	}
	return key, nil
}

// PresignedURL returns a time-limited download link for a stored report.
func (s *Store) PresignedURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, DefaultURLExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// ObjectKey builds the bucket key for one exported report.
func ObjectKey(projectID, runID, filename string) string {
	return path.Join("reports", projectID, runID, filename)
}
