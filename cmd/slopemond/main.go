package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"slope-monitor-backend/config"
	"slope-monitor-backend/internal/api"
	"slope-monitor-backend/internal/auth"
	"slope-monitor-backend/internal/dashboard"
	"slope-monitor-backend/internal/db"
	"slope-monitor-backend/internal/model"
	"slope-monitor-backend/internal/notification"
	"slope-monitor-backend/internal/realtime"
	"slope-monitor-backend/internal/store"
	"slope-monitor-backend/internal/websocket"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "slope-monitor ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled {
		if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
			logger.Fatalf("VAPID keys must be configured when push is enabled. Please generate them and add them to your config file.")
		}
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	feed := realtime.NewFeed(cfg.Sync.PollInterval)
	if err := db.WatchChanges(gormDB, feed); err != nil {
		logger.Fatalf("failed to register change notifications: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	for _, u := range cfg.Auth.Users {
		if err := appStore.UpsertUser(ctx, model.User{Email: u.Email, PasswordHash: u.PasswordHash, Admin: u.Admin}); err != nil {
			logger.Fatalf("failed to seed user %s: %v", u.Email, err)
		}
	}
	logger.Printf("%d configured users seeded", len(cfg.Auth.Users))

	authManager := auth.NewManager(appStore, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	// A nil *WorkerPool must not reach the watcher as a non-nil interface.
	var dispatcher notification.Dispatcher
	if webpushOptions != nil {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		pool.Start(ctx)
		dispatcher = pool
		logger.Printf("push notifications enabled with %d workers", cfg.WorkerPool.Size)
	}
	watcher := notification.NewWatcher(appStore, feed, cfg.Sync.AlertLimit, hub, dispatcher)
	watcherDone := make(chan struct{})
	go func() {
		watcher.Run(ctx)
		close(watcherDone)
	}()

	router := api.NewRouter(cfg.Server, api.Deps{
		Store:   appStore,
		Auth:    authManager,
		Webpush: webpushOptions,
		WS: &websocket.Server{
			Hub:   hub,
			Auth:  authManager,
			Store: appStore,
			Feed:  feed,
			Options: dashboard.Options{
				WindowHours:  cfg.Sync.ReadingWindowHours,
				ReadingLimit: cfg.Sync.ReadingLimit,
				AlertLimit:   cfg.Sync.AlertLimit,
			},
		},
		Options: api.Options{
			WindowHours:  cfg.Sync.ReadingWindowHours,
			ReadingLimit: cfg.Sync.ReadingLimit,
			AlertLimit:   cfg.Sync.AlertLimit,
		},
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}

	// Closing the hub disconnects websocket clients, which releases their subscriptions.
	cancel()
	select {
	case <-watcherDone:
	case <-shutdownCtx.Done():
		logger.Println("alert watcher did not stop in time")
	}

	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Println("Server gracefully stopped")
}
