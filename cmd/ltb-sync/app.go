package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/ltb-sync/internal/bootstrap"
	"github.com/maltedev/ltb-sync/internal/browser"
	"github.com/maltedev/ltb-sync/internal/config"
	"github.com/maltedev/ltb-sync/internal/database"
	"github.com/maltedev/ltb-sync/internal/events"
	"github.com/maltedev/ltb-sync/internal/matcher"
	"github.com/maltedev/ltb-sync/internal/photos"
	"github.com/maltedev/ltb-sync/internal/ratelimit"
	"github.com/maltedev/ltb-sync/internal/reconcile"
	"github.com/maltedev/ltb-sync/internal/scraper"
	"github.com/maltedev/ltb-sync/internal/translate"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *database.DB
	outbox    *database.OutboxRepository
	remote    scraper.Remote
	fetcher   *scraper.Fetcher
	browser   *browser.Browser
	sync      *reconcile.Service
	bootstrap *bootstrap.Service
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	remote, err := scraper.NewRemote(cfg.Remote.BaseURL, cfg.Remote.ListingPath)
	if err != nil {
		return nil, err
	}

	db, err := database.New(ctx, database.Config{
		URL:      cfg.Database.URL,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,

		MaxConnLife: cfg.Database.MaxConnLifetime,
		MaxConnIdle: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		outbox: database.NewOutboxRepository(db),
		remote: remote,
	}

	a.fetcher = scraper.NewFetcher(scraper.FetcherOptions{
		Timeout: cfg.Scraper.Timeout,
		Limiter: ratelimit.New(
			cfg.Scraper.RateLimitMin,
			cfg.Scraper.RateLimitMax,
			cfg.Scraper.RequestsPerSecond,
			cfg.Scraper.Burst,
		),
	}, logger)

	var renderer matcher.Renderer
	if cfg.Browser.Enabled {
		opts := browser.DefaultOptions()
		opts.Timeout = cfg.Browser.Timeout
		b, err := browser.New(opts, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize browser: %w", err)
		}
		a.browser = b
		renderer = b
	}

	resolver := matcher.NewResolver(remote, a.fetcher, renderer, logger)
	store := events.NewInventoryStore(db, logger)
	a.sync = reconcile.NewService(store, resolver, a.fetcher, remote, reconcile.Options{
		Concurrency: cfg.Scraper.Concurrency,
	}, logger)

	translator := translate.NewClient(translate.Config{
		URL:      cfg.Translate.URL,
		LangPair: cfg.Translate.LangPair,
		Timeout:  cfg.Scraper.Timeout,
	}, logger)

	var photoCopier bootstrap.PhotoCopier
	if cfg.Drive.Enabled() {
		drive, err := photos.NewDriveStore(ctx, cfg.Drive.CredentialsFile, cfg.Drive.FolderID)
		if err != nil {
			a.Close()
			return nil, err
		}
		photoCopier = photos.NewMirror(a.fetcher, drive, logger)
	}

	a.bootstrap = bootstrap.NewService(remote, a.fetcher, translator, photoCopier, logger)
	return a, nil
}

// newRelay connects to Redis. It returns nil when Redis is not configured.
func (a *app) newRelay(ctx context.Context) (*database.Relay, *redis.Client, error) {
	if !a.cfg.Redis.Enabled() {
		return nil, nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	relay := database.NewRelay(a.outbox, client, a.logger, database.RelayConfig{
		MaxLen: a.cfg.Redis.StreamMaxLen,
	})
	return relay, client, nil
}

// Ping and Counts let the app serve as the health checker.
func (a *app) Ping(ctx context.Context) error {
	return a.db.Ping(ctx)
}

func (a *app) Counts(ctx context.Context) (int64, int64, error) {
	return a.outbox.Counts(ctx)
}

func (a *app) Close() {
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			a.logger.Warn("failed to close browser", "error", err)
		}
	}
	a.db.Close()
}
