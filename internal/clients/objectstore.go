package clients

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"soundarr/internal/domain"
)

type minioStore struct {
	client *minio.Client
}

// NewMinioStore connects to an S3-compatible endpoint. Every failure
// surfaces as a single ObjectStorageError; the pipeline does not interpret
// provider-specific errors.
func NewMinioStore(endpoint, accessKey, secretKey string, useSSL bool) (domain.ObjectStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object storage client: %w", err)
	}
	return &minioStore{client: client}, nil
}

func (s *minioStore) Upload(ctx context.Context, bucket, path, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.client.FPutObject(ctx, bucket, key, path, minio.PutObjectOptions{}); err != nil {
		return &domain.ObjectStorageError{Op: "upload", Key: key, Err: err}
	}
	return nil
}

func (s *minioStore) Download(ctx context.Context, bucket, key, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.client.FGetObject(ctx, bucket, key, path, minio.GetObjectOptions{}); err != nil {
		return &domain.ObjectStorageError{Op: "download", Key: key, Err: err}
	}
	return nil
}
