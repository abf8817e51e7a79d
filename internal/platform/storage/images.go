// Package storage keeps product images in an S3 compatible bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config locates the bucket. Region skips the bucket location lookup.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Enabled reports whether an endpoint and bucket are configured.
func (c Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// ImageBucket stores product images as objects keyed by product id.
type ImageBucket struct {
	client *minio.Client
	bucket string
}

// NewImageBucket creates the MinIO client for cfg.
func NewImageBucket(cfg Config) (*ImageBucket, error) {
	if !cfg.Enabled() {
		return nil, errors.New("storage: image bucket is not configured")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create client: %w", err)
	}
	return &ImageBucket{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (b *ImageBucket) EnsureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("storage: check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("storage: create bucket %s: %w", b.bucket, err)
	}
	return nil
}

// AttachImage uploads the JPEG for product id, replacing any previous one.
func (b *ImageBucket) AttachImage(ctx context.Context, id int64, image []byte) error {
	key := ProductImageKey(id)
	_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(image), int64(len(image)), minio.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	if err != nil {
		return fmt.Errorf("storage: upload %s: %w", key, err)
	}
	return nil
}

// ProductImageKey is the object key of a product image.
func ProductImageKey(id int64) string {
	return fmt.Sprintf("products/%d.jpg", id)
}
