package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xotten/portfolio/internal/catalog"
	"github.com/xotten/portfolio/internal/contact"
	"github.com/xotten/portfolio/internal/content"
	"github.com/xotten/portfolio/internal/handlers"
	"github.com/xotten/portfolio/internal/kv"
	"github.com/xotten/portfolio/internal/media"
	"github.com/xotten/portfolio/internal/platform/config"
	pfirestore "github.com/xotten/portfolio/internal/platform/firestore"
	"github.com/xotten/portfolio/internal/platform/observability"
	"github.com/xotten/portfolio/internal/platform/secrets"
	"github.com/xotten/portfolio/internal/platform/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("portfolio")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = observability.WithLogger(ctx, logger)

	if err := run(ctx, logger); err != nil {
		logger.Error("portfolio exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.Logger) error {
	envValues, err := config.EnvironmentValues()
	if err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		return fmt.Errorf("secret fetcher: %w", err)
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Error("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		return fmt.Errorf("load configuration: %w", err)
	}

	store, err := catalog.NewStore(
		catalog.WithLogger(logger.Named("catalog")),
		catalog.WithMeter(observability.Meter("github.com/xotten/portfolio/internal/catalog")),
	)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	var loader catalog.Loader
	if cfg.Feed.URL != "" {
		loader = catalog.LoaderFor(cfg.Feed.URL, http.DefaultClient, cfg.Feed.Timeout)
	}
	provider := pfirestore.NewProvider(cfg.Firestore)
	defer func() {
		if err := provider.Close(); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()
	prefsStore, threads, err := newKV(cfg.KV, provider)
	if err != nil {
		return err
	}

	submitter, closeSubmitter, err := newContactSubmitter(ctx, cfg.Contact)
	if err != nil {
		return err
	}
	defer closeSubmitter()

	images, err := newImageRewriter(cfg.Storage, logger)
	if err != nil {
		return err
	}

	h, err := handlers.New(handlers.Deps{
		Catalog:         store,
		Prefs:           prefsStore,
		Threads:         threads,
		OwnerSecret:     cfg.Owner.Secret,
		Pages:           content.NewLibrary(cfg.Content.Dir, content.WithCacheTTL(cfg.Content.CacheTTL), content.WithLogger(logger.Named("content"))),
		Contact:         submitter,
		Images:          images,
		Logger:          logger,
		UnlockPerMinute: cfg.Owner.UnlockPerMinute,
	})
	if err != nil {
		return err
	}
	sessions := session.NewManager(
		session.WithSigningKey(cfg.Session.SigningKey),
		session.WithSecure(cfg.Session.Secure),
		session.WithLogger(logger.Named("session")),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handlers.NewRouter(h, sessions, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("portfolio listening",
			zap.String("addr", server.Addr),
			zap.String("catalog_source", string(store.Source())),
			zap.String("kv_backend", cfg.KV.Backend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return followFeed(gctx, store, loader, cfg.Feed.RefreshInterval, logger)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received; draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// followFeed loads the feed once and then keeps refreshing it. It runs beside the server,
// which serves the fallback list until the first load lands.
func followFeed(ctx context.Context, store *catalog.Store, loader catalog.Loader, interval time.Duration, logger *zap.Logger) error {
	store.Load(ctx, loader)
	if status := store.Status(); status != "" {
		logger.Warn("serving fallback artworks", zap.String("status", status))
	}
	if loader == nil {
		return nil
	}
	return store.RunRefresher(ctx, loader, interval)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	cfg := config.SecretsFrom(env)
	return secrets.NewFetcher(ctx,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(cfg.ProjectID),
		secrets.WithFallbackFile(cfg.FallbackFile),
	)
}

// newKV returns the per-visitor preference store and the codex thread backend.
func newKV(cfg config.KVConfig, provider *pfirestore.Provider) (kv.Store, kv.Backend, error) {
	switch cfg.Backend {
	case config.KVBackendCookie:
		return kv.Cookie{}, kv.NewMemory(), nil
	case config.KVBackendMemory:
		backend := kv.NewMemory()
		return kv.Visitor{Backend: backend}, backend, nil
	case config.KVBackendFile:
		backend := kv.NewFile(cfg.FilePath)
		return kv.Visitor{Backend: backend}, backend, nil
	case config.KVBackendFirestore:
		backend := kv.NewFirestore(provider)
		return kv.Visitor{Backend: backend}, backend, nil
	default:
		return nil, nil, fmt.Errorf("unknown kv backend %q", cfg.Backend)
	}
}

// newContactSubmitter prefers Pub/Sub, then the form endpoint. Without either the form
// reports itself unavailable.
func newContactSubmitter(ctx context.Context, cfg config.ContactConfig) (contact.Submitter, func(), error) {
	if cfg.PubSubTopic != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSubProject)
		if err != nil {
			return nil, nil, fmt.Errorf("pubsub client: %w", err)
		}
		topic := client.Topic(cfg.PubSubTopic)
		submitter, err := contact.NewPubSubSubmitter(topic)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return submitter, func() {
			topic.Stop()
			_ = client.Close()
		}, nil
	}
	if cfg.Endpoint != "" {
		return contact.FormEndpoint{URL: cfg.Endpoint, Client: http.DefaultClient}, func() {}, nil
	}
	return nil, func() {}, nil
}

func newImageRewriter(cfg config.StorageConfig, logger *zap.Logger) (media.Rewriter, error) {
	if strings.TrimSpace(cfg.SignerKey) == "" {
		return media.Passthrough{}, nil
	}
	signer, err := media.LoadKeySigner(cfg.SignerKey)
	if err != nil {
		return nil, fmt.Errorf("storage signer: %w", err)
	}
	return media.NewGCSSigner(signer,
		media.WithLifetime(cfg.SignedURLLifetime),
		media.WithLogger(logger.Named("media")),
	)
}
