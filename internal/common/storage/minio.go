package storage

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const minioNoSuchKey = "NoSuchKey"

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseSSL    bool   `yaml:"useSSL"`
	Bucket    string `yaml:"bucket"`
}

// Enabled reports whether remote storage is configured.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

// MinIOStorage implements ObjectStorage using MinIO S3-compatible APIs.
type MinIOStorage struct {
	core *minio.Core
}

func NewMinIOStorage(cfg MinIOConfig) (*MinIOStorage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" {
		return nil, fmt.Errorf("minio accessKey is required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio secretKey is required")
	}
	core, err := minio.NewCore(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio core failed: %w", err)
	}
	return &MinIOStorage{core: core}, nil
}

func (s *MinIOStorage) GetObject(ctx context.Context, bucket, objectKey string) (ObjectReader, error) {
	obj, _, _, err := s.core.GetObject(ctx, bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get object failed: %w", translateError(err))
	}
	return obj, nil
}

func (s *MinIOStorage) StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error) {
	info, err := s.core.StatObject(ctx, bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		return ObjectStat{}, fmt.Errorf("minio stat object failed: %w", translateError(err))
	}
	return ObjectStat{
		SizeBytes:   info.Size,
		ETag:        info.ETag,
		ContentType: info.ContentType,
	}, nil
}

func translateError(err error) error {
	if minio.ToErrorResponse(err).Code == minioNoSuchKey {
		return ErrObjectNotFound
	}
	return err
}
