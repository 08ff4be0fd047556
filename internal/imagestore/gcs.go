package imagestore

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS uses application default credentials and checks the bucket is reachable.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to cloud storage: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("access bucket %s: %w", bucket, err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	objectName := "reports/" + name

	// Cancelling ctx aborts the upload and discards the object.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		cancel()
		w.Close()
		return "", fmt.Errorf("copy image to gcs: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize gcs object: %w", err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, objectName), nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
