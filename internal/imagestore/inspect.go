package imagestore

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrNotImage means the upload is not in a supported image format.
var ErrNotImage = errors.New("file is not a supported image (jpeg, png, gif, webp, bmp, tiff)")

var contentTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// Inspect decodes the image header and rewinds r. It returns the detected
// content type.
func Inspect(r io.ReadSeeker) (string, error) {
	_, format, err := image.DecodeConfig(r)
	if _, serr := r.Seek(0, io.SeekStart); serr != nil {
		return "", fmt.Errorf("rewind upload: %w", serr)
	}
	if err != nil {
		return "", ErrNotImage
	}
	ct, ok := contentTypes[format]
	if !ok {
		return "", ErrNotImage
	}
	return ct, nil
}
