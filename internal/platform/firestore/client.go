// Package firestore shares one lazily dialled Firestore client across the process.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/xotten/portfolio/internal/platform/config"
)

var (
	// ErrClosed is returned by Client after Close.
	ErrClosed = errors.New("firestore: provider closed")
	// ErrNoProject means neither config nor GOOGLE_CLOUD_PROJECT named a project.
	ErrNoProject = errors.New("firestore: project id is required")
	// ErrNotFound marks a missing document.
	ErrNotFound = errors.New("firestore: not found")
	// ErrUnavailable marks a transient backend failure worth retrying.
	ErrUnavailable = errors.New("firestore: unavailable")
)

// Provider dials on first use. A failed dial is retried by the next Client call.
type Provider struct {
	project  string
	emulator string
	timeout  time.Duration
	extra    []option.ClientOption

	mu     sync.Mutex
	client *firestore.Client
	closed bool
}

// Option configures a Provider.
type Option func(*Provider)

// WithDialTimeout bounds client creation. Defaults to 10s.
func WithDialTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithClientOptions passes extra options to firestore.NewClient.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(p *Provider) { p.extra = append(p.extra, opts...) }
}

// NewProvider resolves the project and emulator host from cfg, falling back to the
// standard Google environment variables.
func NewProvider(cfg config.FirestoreConfig, opts ...Option) *Provider {
	p := &Provider{
		project:  firstNonEmpty(cfg.ProjectID, os.Getenv("GOOGLE_CLOUD_PROJECT")),
		emulator: firstNonEmpty(cfg.EmulatorHost, os.Getenv("FIRESTORE_EMULATOR_HOST")),
		timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Client returns the shared client, dialling it if needed.
func (p *Provider) Client(ctx context.Context) (*firestore.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return nil, ErrClosed
	case p.client != nil:
		return p.client, nil
	case p.project == "":
		return nil, ErrNoProject
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	opts := append([]option.ClientOption(nil), p.extra...)
	if p.emulator != "" {
		opts = append(opts,
			option.WithEndpoint(p.emulator),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	client, err := firestore.NewClient(ctx, p.project, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: dial %s: %w", p.project, err)
	}
	p.client = client
	return client, nil
}

// Close releases the client. The provider is unusable afterwards.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

// WrapError prefixes err with op and tags gRPC NotFound and transient codes with
// ErrNotFound or ErrUnavailable. Cancellation maps to the context errors.
func WrapError(op string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	case codes.NotFound:
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.Aborted:
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// IsNotFound reports whether err is a missing document, wrapped or raw.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || status.Code(err) == codes.NotFound
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
