package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"pantrycam/internal/config"
	"pantrycam/internal/imaging"
)

// ImageArchive stores normalized upload images in an S3-compatible bucket.
type ImageArchive struct {
	client *minio.Client
	bucket string
}

func NewImageArchive(ctx context.Context, cfg config.ArchiveConfig) (*ImageArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client failed: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket failed: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket failed: %w", err)
		}
	}

	return &ImageArchive{client: client, bucket: cfg.Bucket}, nil
}

func (a *ImageArchive) Put(ctx context.Context, key string, img *imaging.Normalized) error {
	_, err := a.client.PutObject(
		ctx,
		a.bucket,
		key,
		bytes.NewReader(img.Data),
		int64(len(img.Data)),
		minio.PutObjectOptions{ContentType: img.MIMEType},
	)
	if err != nil {
		return fmt.Errorf("put object failed: %w", err)
	}
	return nil
}

// Ping checks that the bucket is still reachable.
func (a *ImageArchive) Ping(ctx context.Context) error {
	ok, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %q not found", a.bucket)
	}
	return nil
}
