package imagestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

// Local keeps images in a directory that the API serves statically.
type Local struct {
	dir       string
	urlPrefix string
}

func NewLocal(dir, urlPrefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, urlPrefix: urlPrefix}, nil
}

func (l *Local) Dir() string {
	return l.dir
}

// Save writes to a temp file and renames it into place, so a cancelled or
// failed write never leaves a partial image under its final name.
func (l *Local) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	name = filepath.Base(name)

	tmp, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, ctxReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.dir, name)); err != nil {
		return "", fmt.Errorf("move image into place: %w", err)
	}

	return path.Join(l.urlPrefix, name), nil
}

func (l *Local) Close() error {
	return nil
}
