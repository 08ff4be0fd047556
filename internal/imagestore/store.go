// Package imagestore persists report images on local disk or in object storage.
package imagestore

import (
	"context"
	"fmt"
	"io"

	"github.com/mr1hm/relief-hub/internal/config"
)

// Store writes one image and returns the reference clients use to fetch it.
type Store interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	Close() error
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.UploadConfig) (Store, error) {
	switch cfg.Backend {
	case config.ImageBackendLocal:
		return NewLocal(cfg.Dir, "/uploads")
	case config.ImageBackendGCS:
		return NewGCS(ctx, cfg.GCSBucket)
	case config.ImageBackendS3:
		return NewS3(ctx, cfg.S3Bucket, cfg.S3Region)
	default:
		return nil, fmt.Errorf("unknown image backend: %q", cfg.Backend)
	}
}

// ctxReader stops a copy as soon as ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
