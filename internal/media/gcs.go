package media

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

const defaultLifetime = 10 * time.Minute

var errNoSigner = errors.New("media: signer is required")

// GCSSigner rewrites gs:// references into V4 signed download URLs.
type GCSSigner struct {
	signer   Signer
	lifetime time.Duration
	logger   *zap.Logger
}

// GCSOption customises a GCSSigner.
type GCSOption func(*GCSSigner)

// WithLifetime sets how long signed URLs stay valid.
func WithLifetime(d time.Duration) GCSOption {
	return func(g *GCSSigner) {
		if d > 0 {
			g.lifetime = d
		}
	}
}

// WithLogger sets the logger used for signing failures.
func WithLogger(logger *zap.Logger) GCSOption {
	return func(g *GCSSigner) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGCSSigner builds a GCSSigner.
func NewGCSSigner(signer Signer, opts ...GCSOption) (*GCSSigner, error) {
	if signer == nil || signer.Email() == "" {
		return nil, errNoSigner
	}
	g := &GCSSigner{
		signer:   signer,
		lifetime: defaultLifetime,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Rewrite implements Rewriter. Non-gs references and signing failures return raw unchanged.
func (g *GCSSigner) Rewrite(ctx context.Context, raw string) string {
	bucket, object, ok := ParseGCS(raw)
	if !ok {
		return raw
	}
	signed, err := g.Sign(ctx, bucket, object)
	if err != nil {
		g.logger.Warn("media: sign image url failed", zap.String("bucket", bucket), zap.String("object", object), zap.Error(err))
		return raw
	}
	return signed
}

// Sign returns a signed GET URL for bucket/object. The storage client measures the expiry
// against the wall clock, so Expires must be too.
func (g *GCSSigner) Sign(ctx context.Context, bucket, object string) (string, error) {
	return storage.SignedURL(bucket, object, &storage.SignedURLOptions{
		GoogleAccessID: g.signer.Email(),
		Method:         http.MethodGet,
		Expires:        time.Now().Add(g.lifetime),
		Scheme:         storage.SigningSchemeV4,
		SignBytes: func(payload []byte) ([]byte, error) {
			return g.signer.SignBytes(ctx, payload)
		},
	})
}
