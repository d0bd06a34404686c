package storage

import (
	"context"
	"io"
)

// UploadOptions conveys upload destination metadata for a single object.
type UploadOptions struct {
	Bucket      string
	KeyPrefix   string
	Filename    string
	ContentType string
}

// UploadResult identifies the stored object and its public URL.
type UploadResult struct {
	Key string
	URL string
}

// Service stores user media (avatars, cover images) in remote object storage.
type Service interface {
	UploadFile(ctx context.Context, body io.Reader, opts UploadOptions) (UploadResult, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}
