// Package main implements shopd, the HTTP service in front of the shop's
// flat-file document store and session store.
//
// Architecture:
//
//	┌──────────────────────────────────────────────┐
//	│                   shopd                       │
//	├──────────────────────────────────────────────┤
//	│  HTTP API (gin):                             │
//	│    /health /live /ready /metrics             │
//	│    /collections/*   - Generic document CRUD  │
//	│    /products        - Catalog browsing       │
//	│    /orders, /users/:id/orders                │
//	│    /auth/*          - Login, profile         │
//	│    /admin/*         - Users, product edits   │
//	│    /sessions/*      - Session store          │
//	├──────────────────────────────────────────────┤
//	│  Components:                                 │
//	│    collection.Database - <data_dir>/*.json   │
//	│    session.Store       - file or Redis       │
//	│    session.Sweeper     - expiry sweeps       │
//	└──────────────────────────────────────────────┘
//
// Configuration is read from the YAML file named by SHOP_CONFIG, if set, and
// from SHOP_-prefixed environment variables (see internal/config).
// LOGGING_LEVEL selects the log format: PRODUCTION (default) or DEVELOPMENT.
//
// Example usage:
//
//	SHOP_STORAGE_DATA_DIR=/var/lib/shop SHOP_SERVER_ADDRESS=:8080 ./shopd
//
//	curl -X POST localhost:8080/collections/products \
//	  -d '{"name":"Apple","category":"Fruits","stocks":5}'
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

	"github.com/dreamware/shopstore/internal/collection"
	"github.com/dreamware/shopstore/internal/config"
	"github.com/dreamware/shopstore/internal/seed"
	"github.com/dreamware/shopstore/internal/session"
	"github.com/dreamware/shopstore/internal/shop"
	"github.com/gin-gonic/gin"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"github.com/united-manufacturing-hub/umh-utils/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// logFatal is a variable to allow replacing it in tests
var logFatal = func(template string, args ...interface{}) {
	zap.S().Fatalf(template, args...)
}

func main() {
	logLevel, _ := env.GetAsString("LOGGING_LEVEL", false, "PRODUCTION") //nolint:errcheck
	log := logger.New(logLevel)
	defer func(logger *zap.SugaredLogger) {
		_ = logger.Sync()
	}(log)

	configPath, _ := env.GetAsString("SHOP_CONFIG", false, "") //nolint:errcheck
	cfg, err := config.Load(configPath)
	if err != nil {
		logFatal("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logFatal("shopd: %v", err)
	}
	zap.S().Infof("shopd stopped")
}

// run opens the stores, serves HTTP and sweeps sessions until ctx is done
func run(ctx context.Context, cfg *config.Config) error {
	collOpts := collection.Options{
		Storage:      cfg.StorageOptions(),
		MaxDocuments: cfg.Storage.MaxDocuments,
	}
	db, err := collection.OpenDatabase(cfg.Storage.DataDir, collection.DefaultCollections, collOpts)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	zap.S().Infow("Database opened", "dir", cfg.Storage.DataDir, "collections", db.Names())

	if cfg.SeedFile != "" {
		fixture, err := seed.Load(cfg.SeedFile)
		if err != nil {
			return err
		}
		if _, err := seed.Apply(db, fixture); err != nil {
			return err
		}
	}

	sessOpts := session.Options{DefaultTTL: cfg.Sessions.TTL}
	var (
		sessions  session.Store
		redisPing func() error
	)
	switch cfg.Sessions.Backend {
	case config.BackendRedis:
		client, err := session.DialRedis(ctx, cfg.Sessions.RedisAddr, cfg.Sessions.RedisPassword)
		if err != nil {
			return err
		}
		defer client.Close()
		sessions = session.NewRedisStore(client, sessOpts)
		redisPing = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return client.Ping(pingCtx).Err()
		}
		zap.S().Infow("Using Redis session store", "addr", cfg.Sessions.RedisAddr)
	default:
		fs, err := session.OpenFileStore(cfg.SessionFile(), cfg.StorageOptions(), sessOpts)
		if err != nil {
			return err
		}
		sessions = fs
		zap.S().Infow("Using file session store", "path", cfg.SessionFile())
	}

	srv := NewServer(db, sessions, ServerOptions{
		Users: shop.UsersOptions{
			BcryptCost:       cfg.Auth.BcryptCost,
			MaxLoginFailures: cfg.Auth.MaxLoginFailures,
			LockoutWindow:    cfg.Auth.LockoutWindow,
		},
		Orders:     shop.OrdersOptions{RejectOversell: cfg.Orders.RejectOversell},
		SessionTTL: cfg.Sessions.TTL,
	})
	if redisPing != nil {
		srv.AddReadinessCheck("redis", redisPing)
	}

	gin.SetMode(cfg.Server.Mode)
	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second, // Prevent slowloris attacks
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.S().Infof("shopd listening on %s", cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			zap.S().Errorf("Server shutdown error: %v", err)
		}
		return nil
	})
	if cfg.Sessions.SweepInterval > 0 {
		sweeper := session.NewSweeper(sessions, cfg.Sessions.SweepInterval)
		g.Go(func() error {
			sweeper.Start(gctx)
			return nil
		})
	}

	return g.Wait()
}
