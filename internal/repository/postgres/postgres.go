// Package postgres implements the remote relational backend on top of gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sakif/reportnavi/internal/repository"
)

const backendName = "remote"

var (
	_ repository.Store    = (*RemoteStore)(nil)
	_ repository.TxRunner = (*RemoteStore)(nil)
)

// Config holds the connection settings for the remote database.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// RemoteStore is the remote backend. A RemoteStore returned by RunInTx is
// bound to that transaction.
type RemoteStore struct {
	db     *gorm.DB
	logger *slog.Logger
	inTx   bool
}

// Open connects, sizes the pool, checks the connection and bootstraps the
// tables with AutoMigrate.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*RemoteStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.DSN == "" {
		return nil, errors.New("postgres: DSN is required")
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: connecting: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres: getting sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("postgres: pinging: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&userRow{}, &reportRow{}, &activityRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("postgres: migrating: %w", err)
	}

	log.Info("remote store connected",
		slog.Int("maxOpenConns", cfg.MaxOpenConns),
		slog.Int("maxIdleConns", cfg.MaxIdleConns),
	)
	return &RemoteStore{db: db, logger: log}, nil
}

// Close releases the pool. It is a no-op on a transaction-bound store.
func (s *RemoteStore) Close() error {
	if s.inTx {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *RemoteStore) IsRemote() bool {
	return true
}

// RunInTx runs fn inside one database transaction. Any error returned by fn
// rolls back every write made through the store it was given.
func (s *RemoteStore) RunInTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&RemoteStore{db: tx, logger: s.logger, inTx: true})
	})
}
