package imagestore

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxBaseName = 100

// GenerateName returns a collision-free object name that keeps a readable
// tail of the uploaded file name.
func GenerateName(original string) string {
	return fmt.Sprintf("%d-%s-%s", time.Now().UnixNano(), uuid.NewString()[:8], sanitize(original))
}

func sanitize(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := strings.TrimLeft(b.String(), ".")
	if len(out) > maxBaseName {
		out = out[len(out)-maxBaseName:]
	}
	if out == "" {
		return "image"
	}
	return out
}
