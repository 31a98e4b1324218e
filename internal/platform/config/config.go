// Package config reads runtime settings from XOTTEN_* variables.
//
// Sources are layered lowest first: built-in defaults, the .env file, the process
// environment, then an explicit map. Values of the form secret://name (or the legacy
// sm://name) are handed to a SecretResolver.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// KV backend identifiers accepted by XOTTEN_KV_BACKEND.
const (
	KVBackendMemory    = "memory"
	KVBackendFile      = "file"
	KVBackendFirestore = "firestore"
	KVBackendCookie    = "cookie"
)

// Config is the full runtime configuration.
type Config struct {
	Server    ServerConfig
	Feed      FeedConfig
	Owner     OwnerConfig
	Session   SessionConfig
	Content   ContentConfig
	Contact   ContactConfig
	Firestore FirestoreConfig
	Storage   StorageConfig
	KV        KVConfig
	Secrets   SecretsConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FeedConfig locates the artwork feed. An empty URL serves the built-in fallback catalog
// and a zero RefreshInterval disables background reloads.
type FeedConfig struct {
	URL             string
	Timeout         time.Duration
	RefreshInterval time.Duration
}

type OwnerConfig struct {
	Secret          string
	UnlockPerMinute int
}

// SessionConfig controls the signed visitor cookie. An empty key means a random
// per-process key, so sessions do not survive restarts.
type SessionConfig struct {
	SigningKey string
	Secure     bool
}

type ContentConfig struct {
	Dir      string
	CacheTTL time.Duration
}

// ContactConfig picks where contact messages go: a Pub/Sub topic wins over a form endpoint.
type ContactConfig struct {
	Endpoint      string
	PubSubProject string
	PubSubTopic   string
}

type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StorageConfig enables signed URLs for gs:// artwork images when SignerKey is set.
type StorageConfig struct {
	SignerKey         string
	SignedURLLifetime time.Duration
}

type KVConfig struct {
	Backend  string
	FilePath string
}

type SecretsConfig struct {
	ProjectID    string
	FallbackFile string
}

// SecretResolver turns a secret:// reference into its value.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError lists the settings that are missing or out of range.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return "config: invalid " + strings.Join(e.fields, ", ")
}

// Fields returns the offending setting names.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// SecretError wraps a failed secret lookup with its reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string { return fmt.Sprintf("config: resolve %s: %v", e.Ref, e.Err) }

func (e *SecretError) Unwrap() error { return e.Err }

var errNoResolver = errors.New("no secret resolver configured")

// Option configures Load and EnvironmentValues.
type Option func(*sources)

type sources struct {
	envFile  string
	explicit map[string]string
	osEnv    bool
	resolver SecretResolver
}

// WithEnvFile sets the dotenv path. An empty path skips the file.
func WithEnvFile(path string) Option {
	return func(s *sources) { s.envFile = path }
}

// WithEnvMap layers values over every other source.
func WithEnvMap(values map[string]string) Option {
	return func(s *sources) { s.explicit = values }
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(s *sources) { s.osEnv = false }
}

// WithSecretResolver resolves secret:// values.
func WithSecretResolver(r SecretResolver) Option {
	return func(s *sources) { s.resolver = r }
}

func collect(opts []Option) sources {
	s := sources{envFile: ".env", osEnv: true}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// EnvironmentValues merges the configured sources into one map.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	return collect(opts).merge()
}

func (s sources) merge() (map[string]string, error) {
	values, err := readDotEnv(s.envFile)
	if err != nil {
		return nil, err
	}
	if s.osEnv {
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
				values[k] = v
			}
		}
	}
	for k, v := range s.explicit {
		values[k] = v
	}
	return values, nil
}

// Load builds and validates the Config.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	src := collect(opts)
	values, err := src.merge()
	if err != nil {
		return Config{}, err
	}
	env := vars(values)

	cfg := Config{
		Server: ServerConfig{
			Port:         env.str("XOTTEN_SERVER_PORT", env.str("PORT", "8080")),
			ReadTimeout:  env.dur("XOTTEN_SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: env.dur("XOTTEN_SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  env.dur("XOTTEN_SERVER_IDLE_TIMEOUT", 2*time.Minute),
		},
		Feed: FeedConfig{
			URL:             env.str("XOTTEN_FEED_URL", ""),
			Timeout:         env.dur("XOTTEN_FEED_TIMEOUT", 10*time.Second),
			RefreshInterval: env.dur("XOTTEN_FEED_REFRESH_INTERVAL", 0),
		},
		Owner: OwnerConfig{
			Secret:          env.str("XOTTEN_OWNER_SECRET", "universe"),
			UnlockPerMinute: env.num("XOTTEN_OWNER_UNLOCK_PER_MIN", 10),
		},
		Session: SessionConfig{
			SigningKey: env.str("XOTTEN_SESSION_SIGNING_KEY", ""),
			Secure:     env.flag("XOTTEN_SESSION_SECURE", false),
		},
		Content: ContentConfig{
			Dir:      env.str("XOTTEN_CONTENT_DIR", "content"),
			CacheTTL: env.dur("XOTTEN_CONTENT_CACHE_TTL", 5*time.Minute),
		},
		Contact: ContactConfig{
			Endpoint:      env.str("XOTTEN_CONTACT_ENDPOINT", ""),
			PubSubProject: env.str("XOTTEN_CONTACT_PUBSUB_PROJECT", ""),
			PubSubTopic:   env.str("XOTTEN_CONTACT_PUBSUB_TOPIC", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    env.str("XOTTEN_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: env.str("XOTTEN_FIRESTORE_EMULATOR_HOST", ""),
		},
		Storage: StorageConfig{
			SignerKey:         env.str("XOTTEN_STORAGE_SIGNER_KEY", ""),
			SignedURLLifetime: env.dur("XOTTEN_STORAGE_SIGNED_URL_TTL", 10*time.Minute),
		},
		KV: KVConfig{
			Backend:  strings.ToLower(env.str("XOTTEN_KV_BACKEND", KVBackendCookie)),
			FilePath: env.str("XOTTEN_KV_FILE", "data/preferences.json"),
		},
		Secrets: SecretsFrom(values),
	}
	if cfg.Contact.PubSubProject == "" {
		cfg.Contact.PubSubProject = cfg.Firestore.ProjectID
	}

	for name, field := range map[string]*string{
		"Owner.Secret":       &cfg.Owner.Secret,
		"Session.SigningKey": &cfg.Session.SigningKey,
		"Storage.SignerKey":  &cfg.Storage.SignerKey,
	} {
		if *field, err = resolve(ctx, src.resolver, *field); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", name, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SecretsFrom reads the secret fetcher settings out of merged values. It is separate from
// Load because the fetcher must exist before Load can resolve references.
func SecretsFrom(values map[string]string) SecretsConfig {
	env := vars(values)
	return SecretsConfig{
		ProjectID:    env.str("XOTTEN_SECRETS_PROJECT_ID", env.str("XOTTEN_FIRESTORE_PROJECT_ID", "")),
		FallbackFile: env.str("XOTTEN_SECRETS_FALLBACK_FILE", ".secrets.local"),
	}
}

func resolve(ctx context.Context, resolver SecretResolver, value string) (string, error) {
	if !IsSecretReference(value) {
		return value, nil
	}
	ref := NormalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errNoResolver}
	}
	out, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return out, nil
}

func (c Config) validate() error {
	var bad []string
	check := func(ok bool, field string) {
		if !ok {
			bad = append(bad, field)
		}
	}
	check(c.Server.Port != "", "Server.Port")
	check(c.Feed.Timeout > 0, "Feed.Timeout")
	check(c.Feed.RefreshInterval >= 0, "Feed.RefreshInterval")
	check(c.Owner.UnlockPerMinute > 0, "Owner.UnlockPerMinute")
	switch c.KV.Backend {
	case KVBackendMemory, KVBackendCookie:
	case KVBackendFile:
		check(c.KV.FilePath != "", "KV.FilePath")
	case KVBackendFirestore:
		check(c.Firestore.ProjectID != "", "Firestore.ProjectID")
	default:
		bad = append(bad, "KV.Backend")
	}
	check(c.Contact.PubSubTopic == "" || c.Contact.PubSubProject != "", "Contact.PubSubProject")
	if len(bad) > 0 {
		return &ValidationError{fields: bad}
	}
	return nil
}

// IsSecretReference reports whether value is a secret:// or sm:// reference.
func IsSecretReference(value string) bool {
	value = strings.TrimSpace(value)
	return strings.HasPrefix(value, "secret://") || strings.HasPrefix(value, "sm://")
}

// NormalizeSecretReference rewrites sm:// to secret://.
func NormalizeSecretReference(value string) string {
	value = strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(value, "sm://"); ok {
		return "secret://" + rest
	}
	return value
}

// readDotEnv parses KEY=VALUE lines, allowing comments, blank lines, an export prefix
// and quoted values. A missing file is not an error.
func readDotEnv(path string) (map[string]string, error) {
	values := map[string]string{}
	if path == "" {
		return values, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if key = strings.TrimSpace(key); !ok || key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return values, nil
}

// vars reads typed values. Blank or unparsable entries yield the default.
type vars map[string]string

func (v vars) str(key, def string) string {
	if s := strings.TrimSpace(v[key]); s != "" {
		return s
	}
	return def
}

func (v vars) dur(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(v.str(key, "")); err == nil {
		return d
	}
	return def
}

func (v vars) num(key string, def int) int {
	if n, err := strconv.Atoi(v.str(key, "")); err == nil {
		return n
	}
	return def
}

func (v vars) flag(key string, def bool) bool {
	switch strings.ToLower(v.str(key, "")) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return def
}
