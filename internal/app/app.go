// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/wigle-openroaming/internal/archive"
	"github.com/JakeFAU/wigle-openroaming/internal/clock/system"
	"github.com/JakeFAU/wigle-openroaming/internal/config"
	restyfetcher "github.com/JakeFAU/wigle-openroaming/internal/fetcher/resty"
	"github.com/JakeFAU/wigle-openroaming/internal/hash/sha256"
	"github.com/JakeFAU/wigle-openroaming/internal/id/uuid"
	pubmemory "github.com/JakeFAU/wigle-openroaming/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/wigle-openroaming/internal/publisher/pubsub"
	csvsink "github.com/JakeFAU/wigle-openroaming/internal/sink/csv"
	gcsstore "github.com/JakeFAU/wigle-openroaming/internal/storage/gcs"
	localstore "github.com/JakeFAU/wigle-openroaming/internal/storage/local"
	"github.com/JakeFAU/wigle-openroaming/internal/storage/memory"
	"github.com/JakeFAU/wigle-openroaming/internal/storage/postgres"
	"github.com/JakeFAU/wigle-openroaming/internal/wigle"
)

// Runner executes the paginated fetch for one query.
type Runner interface {
	Run(ctx context.Context, q wigle.Query) (wigle.Summary, error)
}

// Archiver persists the outcome of a finished run.
type Archiver interface {
	Archive(ctx context.Context, summary wigle.Summary) (wigle.RunRecord, error)
}

// App holds the shared services for one CLI invocation.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	fetcher   Runner
	archiver  Archiver
	publisher wigle.Publisher
	closers   []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// GetConfig returns the configuration the services were built from.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetFetcher returns the pagination loop.
func (a *App) GetFetcher() Runner {
	return a.fetcher
}

// GetArchiver returns the run archiver.
func (a *App) GetArchiver() Archiver {
	return a.archiver
}

// New builds every service described by cfg. Anything opened before a failure
// is closed again.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	filter, err := wigle.NewOrgFilter(cfg.WiGLE.OrgCodes)
	if err != nil {
		return nil, fmt.Errorf("init org filter: %w", err)
	}
	logger.Info("filtering on organization codes", zap.Strings("codes", filter.Codes()))
	searcher := restyfetcher.New(restyfetcher.Config{
		BaseURL:      cfg.WiGLE.BaseURL,
		UserAgent:    cfg.WiGLE.UserAgent,
		Timeout:      cfg.WiGLE.Timeout,
		MaxRedirects: cfg.WiGLE.MaxRedirects,
	}, logger.Named("searcher"))

	a.fetcher = wigle.NewFetcher(
		searcher,
		filter,
		csvsink.Opener(csvsink.Options{EscapeChar: cfg.Output.EscapeChar}),
		csvsink.CountRows,
		wigle.TimerPauser{},
		system.New(),
		wigle.Config{
			BaseURL:          cfg.WiGLE.BaseURL,
			DefaultAfterDate: cfg.WiGLE.DefaultAfterDate,
			RCOIsMinimum:     cfg.WiGLE.RCOIsMinimum,
			RequestDelay:     cfg.WiGLE.RequestDelay,
			RetryDelay:       cfg.WiGLE.RetryDelay,
			MaxRetries:       cfg.WiGLE.MaxRetries,
			OutputDir:        cfg.Output.Dir,
		},
		logger.Named("fetcher"),
	)

	blobStore, err := a.buildBlobStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	runStore, err := a.buildRunStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.publisher = publisher

	a.archiver = archive.New(
		uuid.New(),
		sha256.New(),
		blobStore,
		runStore,
		publisher,
		archive.Config{
			ContentType: cfg.Storage.ContentType,
			BlobPrefix:  cfg.Storage.Prefix,
			Topic:       cfg.PubSub.TopicName,
		},
		logger.Named("archive"),
	)
	logger.Debug("application services initialized",
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("run_store", runStore != nil),
		zap.Bool("publisher", publisher != nil),
	)
	return a, nil
}

func (a *App) buildBlobStore(ctx context.Context) (wigle.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case "", config.BackendNone:
		return nil, nil
	case config.BackendMemory:
		return memory.NewBlobStore(), nil
	case config.BackendLocal:
		store, err := localstore.New(localstore.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return store, nil
	case config.BackendGCS:
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, client)
		store, err := gcsstore.New(client, gcsstore.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", a.cfg.Storage.Backend)
	}
}

func (a *App) buildRunStore(ctx context.Context) (wigle.RunStore, error) {
	if a.cfg.DB.DSN == "" {
		if a.cfg.Storage.Backend == config.BackendMemory {
			return memory.NewRunStore(), nil
		}
		return nil, nil
	}
	store, err := postgres.NewRunStore(ctx, postgres.RunStoreConfig{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: int32(a.cfg.DB.MaxConns),
	})
	if err != nil {
		return nil, fmt.Errorf("init run store: %w", err)
	}
	a.closers = append(a.closers, closerFunc(func() error {
		store.Close()
		return nil
	}))
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure run schema: %w", err)
	}
	return store, nil
}

func (a *App) buildPublisher(ctx context.Context) (wigle.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" {
		return nil, nil
	}
	if a.cfg.PubSub.ProjectID == "" && a.cfg.Storage.Backend == config.BackendMemory {
		return pubmemory.New(), nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub client: %w", err)
	}
	publisher := pubsubpublisher.New(client)
	a.closers = append(a.closers, publisher)
	return publisher, nil
}

// Close shuts down every service in the container and flushes the logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}
