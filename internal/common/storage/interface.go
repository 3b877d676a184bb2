package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned when the requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage defines the read-only object operations used to fetch problem data packs.
type ObjectStorage interface {
	// GetObject opens a reader for an object.
	// Caller must close the returned reader.
	GetObject(ctx context.Context, bucket, objectKey string) (ObjectReader, error)

	// StatObject returns size and ETag for an object.
	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)
}

// ObjectReader is a streaming reader for object data.
type ObjectReader interface {
	Read(p []byte) (int, error)
	Close() error
}

// ObjectStat contains object metadata used for validation.
type ObjectStat struct {
	SizeBytes   int64
	ETag        string
	ContentType string
}
