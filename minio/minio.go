// Package minio stores message images in object storage.
package minio

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/tradepost/tradepost/types"
)

type Minio struct {
	baseCtx        context.Context
	cleanupTimeout time.Duration
	client         *minio.Client
	errChan        chan error
}

func New(ctx context.Context, client *minio.Client, cleanupTimeout time.Duration) *Minio {
	return &Minio{
		baseCtx:        ctx,
		cleanupTimeout: cleanupTimeout,
		client:         client,
		errChan:        make(chan error, 1),
	}
}

// Errs reports failures from background cleanups.
func (m *Minio) Errs() <-chan error {
	return m.errChan
}

// Upload stores the image and returns a cleanup that removes it again.
// Callers invoke the cleanup when the message the image belongs to fails
// to persist.
func (m *Minio) Upload(ctx context.Context, bucket string, img types.ImageUpload) (func(), error) {
	info, err := m.client.PutObject(ctx, bucket, img.Path, img.Reader(), img.FileSize, minio.PutObjectOptions{
		ContentType: img.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}

	return func() {
		ctx, cancel := context.WithTimeout(m.baseCtx, m.cleanupTimeout)
		defer cancel()

		if err := m.client.RemoveObject(ctx, bucket, img.Path, minio.RemoveObjectOptions{
			VersionID: info.VersionID,
		}); err != nil {
			m.errChan <- fmt.Errorf("remove object %s: %w", img.Path, err)
		}
	}, nil
}

// CreateReadOnlyBucket creates the bucket if needed and grants public read
// access so image URLs can be served directly.
func (m *Minio) CreateReadOnlyBucket(ctx context.Context, bucketName string) error {
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("check bucket exists: %w", err)
	}

	if !exists {
		err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}

	readOnlyPolicy := fmt.Sprintf(`{
		"Version": "2012-10-17",
		"Statement": [
			{
				"Effect": "Allow",
				"Principal": "*",
				"Action": ["s3:GetObject"],
				"Resource": ["arn:aws:s3:::%s/*"]
			}
		]
	}`, bucketName)

	err = m.client.SetBucketPolicy(ctx, bucketName, readOnlyPolicy)
	if err != nil {
		return fmt.Errorf("set bucket policy: %w", err)
	}

	return nil
}
