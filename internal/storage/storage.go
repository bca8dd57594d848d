package storage

import (
	"context"
	"io"
	"time"
)

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// PutOptions conveys object metadata.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Service stores outbound documents in remote object storage. The bucket is
// fixed when the service is built.
type Service interface {
	Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (string, error)
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DeletePrefix(ctx context.Context, prefix string) error
	CheckBucket(ctx context.Context) error
}
