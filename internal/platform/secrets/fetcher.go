// Package secrets resolves secret://name references for configuration.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"

	"github.com/xotten/portfolio/internal/platform/observability"
)

// ErrNotFound is returned when neither Secret Manager nor the local file has the secret.
var ErrNotFound = errors.New("secrets: not found")

// Accessor is the slice of the Secret Manager client the fetcher uses.
type Accessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

var dial = func(ctx context.Context, opts ...option.ClientOption) (Accessor, error) {
	return secretmanager.NewClient(ctx, opts...)
}

// Fetcher reads secrets from Secret Manager and caches them for the life of the process.
// When no project is set, or the remote refuses or times out, it reads a local YAML
// file mapping secret names to values.
type Fetcher struct {
	remote  Accessor
	owned   bool
	project string
	local   string
	dialOpt []option.ClientOption
	logger  *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]string

	localOnce sync.Once
	localVals map[string]string

	resolved metric.Int64Counter
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithProject names the Secret Manager project.
func WithProject(project string) Option {
	return func(f *Fetcher) { f.project = strings.TrimSpace(project) }
}

// WithFallbackFile sets the local YAML file. An empty path disables it.
func WithFallbackFile(path string) Option {
	return func(f *Fetcher) { f.local = strings.TrimSpace(path) }
}

// WithAccessor injects the Secret Manager client.
func WithAccessor(a Accessor) Option {
	return func(f *Fetcher) { f.remote = a }
}

// WithClientOptions are passed to secretmanager.NewClient.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(f *Fetcher) { f.dialOpt = append(f.dialOpt, opts...) }
}

// NewFetcher builds a Fetcher. The Secret Manager client is only dialled when a project is
// set; a failed dial leaves the fetcher in local-only mode.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		local:  ".secrets.local",
		logger: zap.NewNop(),
		cache:  map[string]string{},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.resolved = observability.Counter(
		observability.Meter("github.com/xotten/portfolio/internal/platform/secrets"),
		f.logger, "secrets.resolutions", "Secret resolutions by source",
	)
	if f.remote == nil && f.project != "" {
		client, err := dial(ctx, f.dialOpt...)
		if err != nil {
			f.logger.Warn("secret manager unavailable, using local secrets only", zap.Error(err))
		} else {
			f.remote, f.owned = client, true
		}
	}
	return f, nil
}

// Close closes a client the fetcher dialled itself.
func (f *Fetcher) Close() error {
	if f.owned {
		return f.remote.Close()
	}
	return nil
}

// ResolveSecret implements config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f.Resolve(ctx, ref)
}

// Resolve returns the value of a secret://name[?version=N] reference.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	name, version, err := parseRef(ref)
	if err != nil {
		return "", err
	}
	key := name + "@" + version

	f.mu.RLock()
	value, ok := f.cache[key]
	f.mu.RUnlock()
	if ok {
		f.count(ctx, "cache")
		return value, nil
	}

	v, err, _ := f.group.Do(key, func() (any, error) {
		value, source, err := f.lookup(ctx, name, version)
		if err != nil {
			f.count(ctx, "error")
			return "", err
		}
		f.mu.Lock()
		f.cache[key] = value
		f.mu.Unlock()
		f.count(ctx, source)
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (f *Fetcher) lookup(ctx context.Context, name, version string) (string, string, error) {
	if f.remote != nil && f.project != "" {
		value, err := f.access(ctx, name, version)
		switch {
		case err == nil:
			return value, "remote", nil
		case !recoverable(err):
			return "", "", fmt.Errorf("secrets: access %s: %w", name, err)
		}
		f.logger.Debug("secret manager refused, trying local file", zap.String("secret", name), zap.Error(err))
	}
	if value, ok := f.fromFile(name); ok {
		return value, "local", nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

func (f *Fetcher) access(ctx context.Context, name, version string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	resp, err := f.remote.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: "projects/" + f.project + "/secrets/" + name + "/versions/" + version,
	})
	if err != nil {
		return "", err
	}
	if resp.GetPayload() == nil {
		return "", errors.New("empty payload")
	}
	return string(resp.GetPayload().GetData()), nil
}

func (f *Fetcher) fromFile(name string) (string, bool) {
	f.localOnce.Do(func() {
		f.localVals = map[string]string{}
		if f.local == "" {
			return
		}
		data, err := os.ReadFile(f.local)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				f.logger.Warn("local secrets unreadable", zap.String("path", f.local), zap.Error(err))
			}
			return
		}
		if err := yaml.Unmarshal(data, &f.localVals); err != nil {
			f.logger.Warn("local secrets malformed", zap.String("path", f.local), zap.Error(err))
			f.localVals = map[string]string{}
		}
	})
	value, ok := f.localVals[name]
	return value, ok
}

func (f *Fetcher) count(ctx context.Context, source string) {
	if f.resolved == nil {
		return
	}
	f.resolved.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// parseRef splits secret://name?version=N. The version defaults to latest.
func parseRef(ref string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", "", fmt.Errorf("secrets: bad reference %q: %w", ref, err)
	}
	if u.Scheme != "secret" {
		return "", "", fmt.Errorf("secrets: reference %q must use secret://", ref)
	}
	name := strings.Trim(u.Host+u.Path, "/")
	if name == "" {
		return "", "", fmt.Errorf("secrets: reference %q has no name", ref)
	}
	version := u.Query().Get("version")
	if version == "" {
		version = "latest"
	}
	return name, version, nil
}

// recoverable codes fall through to the local file; NotFound and the rest do not.
func recoverable(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return false
}
