// Command server runs the ReportNavi HTTP API.
//
// Configuration comes from the environment (see internal/config). The
// storage backend is chosen once at startup: STORAGE_BACKEND=remote with a
// DATABASE_URL uses postgres, anything else uses the local SQLite file at
// DB_PATH.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/reportnavi/internal/auth"
	"github.com/sakif/reportnavi/internal/config"
	"github.com/sakif/reportnavi/internal/ledger"
	"github.com/sakif/reportnavi/internal/metrics"
	"github.com/sakif/reportnavi/internal/repository"
	"github.com/sakif/reportnavi/internal/repository/postgres"
	"github.com/sakif/reportnavi/internal/repository/sqlite"
	"github.com/sakif/reportnavi/internal/server"
	"github.com/sakif/reportnavi/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	store, err := openStore(context.Background(), cfg, logger)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		store.Close()
		return fmt.Errorf("creating token service: %w", err)
	}
	if cfg.AdminCode == "" {
		logger.Warn("ADMIN_CODE not set; admin registration is disabled")
	}

	m := metrics.New()
	l := ledger.New(store)

	srv := server.New(server.Config{Port: cfg.Port}, server.Deps{
		Store:    store,
		Tokens:   tokens,
		Accounts: service.NewAccountService(store, tokens, auth.NewPasswordService(), cfg.AdminCode, logger),
		Reports:  service.NewReportService(store, l, m, logger),
		Stats:    service.NewStatsService(store),
		Ledger:   l,
		Metrics:  m,
	}, logger)

	// Start blocks until SIGINT/SIGTERM and closes the store on the way out.
	return srv.Start()
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, error) {
	if cfg.IsRemote() {
		store, err := postgres.Open(ctx, postgres.Config{
			DSN:             cfg.DatabaseURL,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLife,
			PingTimeout:     cfg.DBConnectTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("opening remote store: %w", err)
		}
		return store, nil
	}

	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dbDir, err)
	}
	store, err := sqlite.New(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	return store, nil
}
