package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// S3Service uploads media objects to Amazon S3 (or compatible APIs).
type S3Service struct {
	client        *s3.Client
	uploader      *manager.Uploader
	publicBaseURL string
}

// NewS3Service builds a service around an S3 client. publicBaseURL, when
// set, is used as the prefix of returned object URLs (e.g. a CDN domain);
// otherwise a virtual-hosted s3 URL is derived from the bucket.
func NewS3Service(client *s3.Client, publicBaseURL string) *S3Service {
	return &S3Service{
		client:        client,
		uploader:      manager.NewUploader(client),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *S3Service) UploadFile(ctx context.Context, body io.Reader, opts UploadOptions) (UploadResult, error) {
	if opts.Bucket == "" {
		return UploadResult{}, fmt.Errorf("storage bucket is required")
	}

	key := objectKey(opts.KeyPrefix, opts.Filename)

	input := &s3.PutObjectInput{
		Bucket: aws.String(opts.Bucket),
		Key:    aws.String(key),
		Body:   body,
		ACL:    types.ObjectCannedACLPublicRead,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: %w", key, err)
	}

	return UploadResult{Key: key, URL: s.objectURL(opts.Bucket, key)}, nil
}

func (s *S3Service) DeleteObject(ctx context.Context, bucket, key string) error {
	if bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("object key is required")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// objectKey builds a collision-free key, keeping the original extension so
// content type stays guessable from the URL.
func objectKey(prefix, filename string) string {
	name := uuid.NewString()
	if ext := path.Ext(filename); ext != "" {
		name += strings.ToLower(ext)
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func (s *S3Service) objectURL(bucket, key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucket, key)
}

var _ Service = (*S3Service)(nil)
