package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Skotchmaster/bookstore/internal/config"
	"github.com/Skotchmaster/bookstore/internal/db"
	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/mykafka"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/internal/search"
	"github.com/Skotchmaster/bookstore/internal/service"
	"github.com/Skotchmaster/bookstore/internal/tokens"
	httpserver "github.com/Skotchmaster/bookstore/internal/transport/http"
)

type publisher interface {
	service.EventPublisher
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.IntoContext(ctx, logger)

	gdb, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db_open_failed", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(gdb); err != nil {
		logger.Error("db_migrate_failed", "error", err)
		os.Exit(1)
	}
	r := repo.New(gdb)

	var events publisher = mykafka.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		events = mykafka.NewProducer(cfg.KafkaBrokers, logger)
		logger.Info("kafka_enabled", "brokers", cfg.KafkaBrokers)
	}

	var (
		index    service.BookIndex
		backfill bool
	)
	if cfg.ESURL != "" {
		engine, err := search.New(search.Config{
			Addresses: []string{cfg.ESURL},
			Username:  cfg.ESUser,
			Password:  cfg.ESPassword,
			Index:     cfg.ESIndex,
		})
		if err != nil {
			logger.Error("search_init_failed", "error", err)
			os.Exit(1)
		}
		if err := engine.EnsureIndex(ctx); err != nil {
			logger.Warn("search_index_unavailable", "error", err)
		} else {
			backfill = true
		}
		index = engine
	}

	authSvc := &service.AuthService{
		Repo: r,
		Tokens: &tokens.Issuer{
			AccessSecret:  cfg.JWTAccessSecret,
			RefreshSecret: cfg.JWTRefreshSecret,
			AccessTTL:     cfg.AccessTTL,
			RefreshTTL:    cfg.RefreshTTL,
		},
		Events: events,
	}
	if cfg.AdminUsername != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logger.Error("ensure_admin_failed", "error", err)
			os.Exit(1)
		}
	}

	catalog := &service.CatalogService{Repo: r, Index: index, Events: events}
	if backfill {
		go func() {
			n, err := catalog.Reindex(ctx, cfg.ESReindexBatch)
			if err != nil {
				logger.Warn("search_reindex_failed", "indexed", n, "error", err)
				return
			}
			logger.Info("search_reindex_done", "indexed", n)
		}()
	}

	e := httpserver.New(logger, &httpserver.Deps{
		Repo:          r,
		Auth:          authSvc,
		Catalog:       catalog,
		Cart:          &service.CartService{Repo: r, Events: events},
		Checkout:      &service.CheckoutService{Repo: r, Events: events},
		Orders:        &service.OrderService{Repo: r},
		AccessSecret:  cfg.JWTAccessSecret,
		CookieSecure:  cfg.CookieSecure,
		AuthRateLimit: cfg.AuthRateLimit,
		CORSOrigins:   cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http_server_started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db_close_error", "error", err)
		}
	}
	if err := events.Close(); err != nil {
		logger.Error("kafka_close_error", "error", err)
	}

	logger.Info("shutdown complete")
}
