// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opentrusty/tenantry/internal/access"
	"github.com/opentrusty/tenantry/internal/audit"
	"github.com/opentrusty/tenantry/internal/auth"
	"github.com/opentrusty/tenantry/internal/config"
	"github.com/opentrusty/tenantry/internal/observability/logger"
	"github.com/opentrusty/tenantry/internal/observability/metrics"
	"github.com/opentrusty/tenantry/internal/observability/tracing"
	"github.com/opentrusty/tenantry/internal/store/cache"
	"github.com/opentrusty/tenantry/internal/store/memory"
	"github.com/opentrusty/tenantry/internal/store/postgres"
	"github.com/opentrusty/tenantry/internal/tenant"
	transportHTTP "github.com/opentrusty/tenantry/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		err = runServe(cfg)
	case "migrate":
		err = runMigrate(cfg)
	case "token":
		err = runToken(cfg, args)
	default:
		err = fmt.Errorf("unknown command %q (want serve, migrate or token)", cmd)
	}
	if err != nil {
		slog.Error("command failed", logger.Operation(cmd), logger.Error(err))
		os.Exit(1)
	}
}

func runServe(cfg *config.Config) error {
	slog.Info("starting tenantry", logger.Driver(cfg.Store.Driver))

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	} else {
		defer tracer.Shutdown(ctx)
	}

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
	})
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	} else {
		defer meter.Shutdown(ctx)
	}

	repo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var tenantCache tenant.Cache
	if cfg.Cache.Enabled {
		c, err := cache.New(int64(cfg.Cache.MaxEntries))
		if err != nil {
			return fmt.Errorf("failed to create cache: %w", err)
		}
		defer c.Close()
		tenantCache = c
	}

	decl := tenant.NewCollection(access.Authenticated)
	if err := decl.Validate(); err != nil {
		return err
	}
	slog.Info("collection registered", logger.Collection(decl.Slug))

	tenantService := tenant.NewService(repo, decl, tenantCache, cfg.Cache.TTL, audit.NewSlogLogger())

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Leeway)
	if err != nil {
		return err
	}

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	handler := transportHTTP.NewHandler(tenantService, verifier, meter)
	router := transportHTTP.NewRouter(handler, rateLimiter, cfg.Server.TrustProxy)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
	return nil
}

// openStore returns the configured tenant repository and its release func
func openStore(ctx context.Context, cfg *config.Config) (tenant.Repository, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		slog.Warn("using in-memory tenant store; data is lost on restart", logger.Driver(cfg.Store.Driver))
		return memory.NewTenantRepository(), func() {}, nil

	case config.DriverPostgres:
		pgCfg := postgresConfig(cfg)
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, pgCfg); err != nil {
				return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		db, err := postgres.New(ctx, pgCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("connected to database", logger.Driver(cfg.Store.Driver))
		return postgres.NewTenantRepository(db), db.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}

func runMigrate(cfg *config.Config) error {
	if cfg.Store.Driver != config.DriverPostgres {
		return fmt.Errorf("migrate requires STORE_DRIVER=%s", config.DriverPostgres)
	}
	slog.Info("applying migrations", logger.Driver(cfg.Store.Driver))
	if err := postgres.Migrate(context.Background(), postgresConfig(cfg)); err != nil {
		return err
	}
	slog.Info("migration successful")
	return nil
}

// runToken mints a bearer token for local development
func runToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	sub := fs.String("sub", "", "subject (actor id)")
	email := fs.String("email", "", "actor email")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return err
	}
	token, err := issuer.Issue(access.Actor{ID: *sub, Email: *email}, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func postgresConfig(cfg *config.Config) postgres.Config {
	return postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
}
