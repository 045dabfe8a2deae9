// Package app wires the configured stores, feeds and services together for the
// server and the operator CLI.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"baro-tracker-api/internal/cache"
	"baro-tracker-api/internal/config"
	"baro-tracker-api/internal/logger"
	"baro-tracker-api/internal/market"
	"baro-tracker-api/internal/notify"
	"baro-tracker-api/internal/reference"
	"baro-tracker-api/internal/repository"
	"baro-tracker-api/internal/service"
	"baro-tracker-api/internal/source"
)

// cacheStore is what the app needs from a cache backend.
type cacheStore interface {
	cache.Cache
	cache.Locker
}

// App holds the wired components.
type App struct {
	Config    *config.Config
	Store     repository.Store
	Cache     cacheStore
	CacheType string
	Resolver  *reference.Resolver
	Source    *source.Arbiter
	Notifier  notify.Notifier

	Status     *service.StatusService
	Wishlist   *service.WishlistService
	Tokens     *service.PushTokenService
	Reconciler *service.Reconciler
	Backfill   *service.BackfillService
	Visits     *service.VisitService
	Likes      *service.LikeService
	Reviews    *service.ReviewService
	Market     *service.MarketService

	closers []func() error
}

// New opens the configured backends and builds every service.
func New(cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	store, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	a.Cache, a.CacheType = openCache(cfg.Cache)
	if rc, ok := a.Cache.(*cache.RedisCache); ok {
		a.closers = append(a.closers, rc.Close)
	}

	client := source.NewHTTPClient(cfg.Source.Timeout, cfg.Source.RetryMax)

	var loader reference.Loader
	if cfg.Reference.Path != "" {
		loader = reference.FileLoader{Path: cfg.Reference.Path}
		logger.Log.Infof("[App] Reference dataset from file %s", cfg.Reference.Path)
	} else {
		loader = &reference.HTTPLoader{
			URL:    cfg.Reference.URL,
			Client: client,
			Cache:  a.Cache,
			TTL:    cfg.Reference.CacheTTL,
		}
		logger.Log.Infof("[App] Reference dataset from %s (cache ttl %v)", cfg.Reference.URL, cfg.Reference.CacheTTL)
	}
	a.Resolver = reference.NewResolver(reference.NewProvider(loader), reference.ResolverConfig{
		ImageBaseURL: cfg.Reference.ImageBaseURL,
		WikiBaseURL:  cfg.Reference.WikiBaseURL,
	})

	a.Source = source.NewArbiter(
		source.NewPrimaryClient(cfg.Source.PrimaryURL, client),
		source.NewSecondaryClient(cfg.Source.SecondaryURL, client, a.Resolver),
	)

	switch cfg.Notify.Type {
	case "expo":
		a.Notifier = notify.NewExpoNotifier(notify.ExpoConfig{
			URL:         cfg.Notify.ExpoURL,
			AccessToken: cfg.Notify.AccessToken,
			ChannelID:   cfg.Notify.ChannelID,
		}, client)
		logger.Log.Info("[App] Expo push notifier initialized")
	default:
		a.Notifier = notify.NewLogNotifier()
		logger.Log.Info("[App] Notifications are logged only")
	}

	a.Status = service.NewStatusService(store, store)
	a.Wishlist = service.NewWishlistService(store, store)
	a.Tokens = service.NewPushTokenService(store)
	a.Reconciler = service.NewReconciler(store, store, a.Resolver)
	a.Backfill = service.NewBackfillService(store, a.Resolver)
	a.Visits = service.NewVisitService(service.VisitDeps{
		Source:     a.Source,
		Reconciler: a.Reconciler,
		Status:     a.Status,
		Tokens:     a.Tokens,
		Wishlist:   a.Wishlist,
		Notifier:   a.Notifier,
		Locker:     a.Cache,
	})
	a.Likes = service.NewLikeService(store)
	a.Reviews = service.NewReviewService(store)
	a.Market = service.NewMarketService(service.MarketDeps{
		Catalog: store,
		Market:  store,
		Fetcher: market.NewClient(cfg.Market.BaseURL, client),
		Locker:  a.Cache,
		Delay:   cfg.Market.RequestDelay,
	})
	return a, nil
}

func openStore(cfg config.StoreConfig) (repository.Store, error) {
	switch cfg.Type {
	case "mongodb", "mongo":
		store, err := repository.NewMongoStore(cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
		}
		logger.Log.Info("[App] MongoDB catalog store initialized")
		return store, nil
	case "memory":
		logger.Log.Warn("[App] Using in-memory catalog store, data is lost on restart")
		return repository.NewMemoryStore(), nil
	default:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		store, err := repository.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
		}
		logger.Log.Infof("[App] SQLite catalog store initialized at %s", cfg.SQLitePath)
		return store, nil
	}
}

// openCache connects to Redis when configured and falls back to memory when it
// is unreachable.
func openCache(cfg config.CacheConfig) (cacheStore, string) {
	if cfg.Type == "redis" {
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:      cfg.RedisAddress(),
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
		})
		if err == nil {
			return rc, "redis"
		}
		logger.Log.Warnf("[App] Redis connection failed, using memory cache: %v", err)
	}
	return cache.NewMemoryCache(), "memory"
}

// Ping checks the catalog store.
func (a *App) Ping(ctx context.Context) error {
	_, err := a.Store.GetStats(ctx)
	return err
}

// Close releases every backend in reverse open order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Log.Warnf("[App] Close failed: %v", err)
		}
	}
}
