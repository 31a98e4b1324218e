// Package media turns artwork image references into URLs a browser can load.
package media

import (
	"context"
	"strings"
)

// Rewriter maps a raw image reference from the feed to a displayable URL.
type Rewriter interface {
	Rewrite(ctx context.Context, raw string) string
}

// Passthrough returns references unchanged.
type Passthrough struct{}

// Rewrite implements Rewriter.
func (Passthrough) Rewrite(_ context.Context, raw string) string {
	return raw
}

const gcsScheme = "gs://"

// ParseGCS splits a gs://bucket/object reference. ok is false for anything else.
func ParseGCS(raw string) (bucket, object string, ok bool) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, gcsScheme) {
		return "", "", false
	}
	rest := strings.TrimPrefix(raw, gcsScheme)
	bucket, object, found := strings.Cut(rest, "/")
	object = strings.TrimLeft(object, "/")
	if !found || bucket == "" || object == "" {
		return "", "", false
	}
	return bucket, object, true
}
