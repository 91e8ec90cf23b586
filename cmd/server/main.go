// Command faxrelay-server runs the credential relay: client init, bearer
// refresh and download-history sync over HTTPS.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/telany/faxrelay/internal/audit"
	"github.com/telany/faxrelay/internal/config"
	"github.com/telany/faxrelay/internal/limiter"
	"github.com/telany/faxrelay/internal/migrate"
	"github.com/telany/faxrelay/internal/repository/postgres"
	"github.com/telany/faxrelay/internal/server/httpapi"
	"github.com/telany/faxrelay/internal/service"
	"github.com/telany/faxrelay/internal/token"
	"github.com/telany/faxrelay/internal/upstream"
	"github.com/telany/faxrelay/internal/vault"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and serves the relay API
// alongside the periodic bearer refresher.
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	gin.SetMode(cfg.GinMode)

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	// DB pool
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer pool.Close()

	// Repositories
	db := &postgres.DB{Pool: pool}
	tenantRepo := postgres.NewTenantRepo(db)
	resellerRepo := postgres.NewResellerRepo(db)
	bearerRepo := postgres.NewBearerRepo(db)
	historyRepo := postgres.NewHistoryRepo(db)

	lim := limiter.NewPG(pool, 15*time.Minute, 5, 15*time.Minute)

	keys, err := token.LoadKeySet(cfg.KeyDir, cfg.ActiveKID)
	if err != nil {
		logger.Fatal("load signing keys", zap.Error(err))
	}

	rec := audit.NewRecorder(logger)
	vlt := vault.New(rec)

	issuer, err := token.New(keys, token.Config{
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		TTL:           cfg.TokenTTL,
		NotBeforeSkew: cfg.NotBeforeSkew,
		Leeway:        cfg.Leeway,
	}, rec)
	if err != nil {
		logger.Fatal("token issuer", zap.Error(err))
	}

	// Services
	refresher := service.NewRefresher(tenantRepo, resellerRepo, bearerRepo, vlt,
		upstream.New(cfg.UpstreamTokenURL, cfg.UpstreamGrantType), rec)

	router := httpapi.NewRouter(httpapi.Deps{
		Server: httpapi.NewServer(
			service.NewInitService(tenantRepo, issuer, lim, rec),
			service.NewBearerService(tenantRepo, bearerRepo, refresher, rec),
			service.NewSyncService(historyRepo, rec),
		),
		Admin:    httpapi.NewAdmin(tenantRepo, resellerRepo, vlt, rec),
		Issuer:   issuer,
		AdminKey: cfg.AdminKey,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Periodic bearer refresh
	go func() {
		ticker := time.NewTicker(cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				outcomes, err := refresher.RunCycle(ctx)
				if err != nil {
					logger.Error("refresh cycle", zap.Error(err))
					continue
				}
				logger.Info("refresh cycle", zap.Int("tenants", len(outcomes)))
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			logger.Info("listening (TLS)", zap.String("addr", cfg.Addr))
			errCh <- srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
			return
		}
		logger.Warn("listening without TLS", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
