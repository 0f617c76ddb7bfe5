package gcs

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"

	ports "model-retrain-service/internal/core/ports/output"
)

// Bucket uploads files to a Google Cloud Storage bucket using application
// default credentials.
type Bucket struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

var _ ports.ObjectStore = (*Bucket)(nil)

func NewBucket(ctx context.Context, name string) (*Bucket, error) {
	if name == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Bucket{client: client, bucket: client.Bucket(name)}, nil
}

func (b *Bucket) Upload(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	w := b.bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object %s: %w", key, err)
	}
	return nil
}

func (b *Bucket) Close() error {
	return b.client.Close()
}
