package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"baro-tracker-api/internal/app"
	"baro-tracker-api/internal/config"
	"baro-tracker-api/internal/handler"
	"baro-tracker-api/internal/logger"
	"baro-tracker-api/internal/middleware"
	"baro-tracker-api/internal/router"
	"baro-tracker-api/internal/service"
)

func main() {
	cfg := config.MustLoad()
	logger.Setup(cfg.App.LogLevel, cfg.App.IsProduction())
	logger.Log.Infof("Starting %s %s (%s)", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

	a, err := app.New(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	keys := cfg.App.Keys()
	if len(keys) == 0 {
		logger.Log.Warn("API_KEYS is empty, admin endpoints will reject every request")
	}

	r := router.New(router.Config{
		Handler: handler.New(cfg.App.Name, cfg.App.Version, handler.ReadyCheck{
			Name:  "store",
			Probe: a.Ping,
		}),
		ItemHandler:      handler.NewItemHandler(a.Store, a.Status, a.Wishlist),
		SocialHandler:    handler.NewSocialHandler(a.Likes, a.Reviews, a.Market),
		PushTokenHandler: handler.NewPushTokenHandler(a.Tokens, a.Wishlist),
		AdminHandler: handler.NewAdminHandler(handler.AdminConfig{
			Store:     a.Store,
			Visits:    a.Visits,
			Backfill:  a.Backfill,
			Market:    a.Market,
			Source:    a.Source,
			StoreType: cfg.Store.Type,
			CacheType: a.CacheType,
		}),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{APIKeys: keys}),
	})

	var scheduler *service.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = service.NewScheduler(a.Visits, a.Tokens, service.SchedulerConfig{
			RefreshInterval: cfg.Scheduler.RefreshInterval,
			CleanupInterval: cfg.Scheduler.CleanupInterval,
			TokenRetention:  cfg.Scheduler.TokenRetention,
			MarketInterval:  cfg.Scheduler.MarketInterval,
			InitialDelay:    service.DefaultSchedulerConfig().InitialDelay,
		}).WithMarket(a.Market)
		scheduler.Start()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Log.Infof("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop()
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Errorf("Server shutdown error: %v", err)
	}

	logger.Log.Info("Server stopped")
}
