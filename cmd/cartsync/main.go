package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikkim/udonggeum-cartsync/config"
	"github.com/ikkim/udonggeum-cartsync/internal/app/controller"
	"github.com/ikkim/udonggeum-cartsync/internal/cart"
	"github.com/ikkim/udonggeum-cartsync/internal/metrics"
	"github.com/ikkim/udonggeum-cartsync/internal/middleware"
	"github.com/ikkim/udonggeum-cartsync/internal/remote"
	"github.com/ikkim/udonggeum-cartsync/internal/router"
	"github.com/ikkim/udonggeum-cartsync/internal/scheduler"
	"github.com/ikkim/udonggeum-cartsync/internal/session"
	"github.com/ikkim/udonggeum-cartsync/internal/store"
	"github.com/ikkim/udonggeum-cartsync/internal/websocket"
	"github.com/ikkim/udonggeum-cartsync/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := cfg.Log.Level
	if logLevel == "" {
		logLevel = "info"
		if cfg.Server.Environment == "development" {
			logLevel = "debug"
		}
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      cfg.Log.Format,
		EnableColor: cfg.Log.Format == "console",
	})

	logger.Info("Starting UDONGGEUM cart sync", map[string]interface{}{
		"environment":     cfg.Server.Environment,
		"port":            cfg.Server.Port,
		"remote":          cfg.Remote.BaseURL,
		"debounce_window": cfg.Sync.DebounceWindow.String(),
		"snapshot_store":  cfg.Store.Driver,
	})

	// Session
	tokens := session.NewTokenStore(cfg.Session.Token)
	guard := session.NewGuard(tokens, session.NewLogPrompter(), cfg.Session.SignInRoute)

	// Remote cart
	remoteClient, err := remote.NewClient(remote.Config{
		BaseURL:   cfg.Remote.BaseURL,
		Timeout:   cfg.Remote.Timeout,
		RateLimit: cfg.Remote.RateLimit,
		Burst:     cfg.Remote.Burst,
	}, tokens)
	if err != nil {
		logger.Fatal("Failed to create remote cart client", err)
	}

	// Snapshot store
	snapshots, closeStore, err := store.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to open snapshot store", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("Failed to close snapshot store", err)
		}
	}()

	recorder := metrics.NewRecorder()
	opts := []cart.Option{
		cart.WithDebounceWindow(cfg.Sync.DebounceWindow),
		cart.WithRecorder(recorder),
	}
	if snapshots != nil {
		opts = append(opts, cart.WithSnapshotStore(store.NewScoped(snapshots, guard.Subject), cfg.Sync.SnapshotKey))
	}
	sync := cart.NewSynchronizer(remoteClient, guard, opts...)
	defer sync.Close()

	// Presentation push
	hub := websocket.NewHub()
	hub.OnRefresh = refreshHook(sync, cfg.Remote.Timeout)
	go hub.Run()
	defer hub.Stop()
	unsubscribe := sync.Subscribe(hub.Publish)
	defer unsubscribe()

	// Cold start: last known cart first, then the server's
	startCtx, cancelStart := context.WithTimeout(context.Background(), cfg.Remote.Timeout)
	if err := sync.Hydrate(startCtx); err != nil {
		logger.Warn("Failed to hydrate cart snapshot", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err := sync.Load(startCtx, false); err != nil {
		logger.Warn("Initial cart load interrupted", map[string]interface{}{
			"error": err.Error(),
		})
	}
	cancelStart()

	// Background resync
	var resync *scheduler.ResyncScheduler
	if cfg.Sync.ResyncSpec != "" {
		resync = scheduler.NewResyncScheduler(sync, cfg.Sync.ResyncSpec, cfg.Remote.Timeout)
		if err := resync.Start(); err != nil {
			logger.Fatal("Failed to start resync scheduler", err)
		}
	}

	// Setup router
	r := router.NewRouter(
		controller.NewCartController(sync, cfg.Session.SignInRoute),
		controller.NewSessionController(tokens, guard, sync),
		controller.NewCheckoutController(sync),
		controller.NewWSController(hub, sync),
		middleware.NewSessionMiddleware(tokens),
		recorder.Handler(),
		cfg,
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r.Setup(),
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")

	if resync != nil {
		resync.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}

	// Quantity changes still inside the debounce window are sent, not dropped
	if err := sync.Flush(ctx); err != nil {
		logger.Warn("Pending cart writes not flushed before exit", map[string]interface{}{
			"error":   err.Error(),
			"pending": sync.PendingWrites(),
		})
	}

	logger.Info("Server stopped successfully")
}

// refreshHook reloads the cart silently when a websocket client asks for it
func refreshHook(loader scheduler.Loader, timeout time.Duration) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := loader.Load(ctx, true); err != nil {
			logger.Warn("Cart refresh requested over websocket interrupted", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}
