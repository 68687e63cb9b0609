// Package repository is the storage boundary: SQL-backed repositories over
// Postgres (pgx) or an embedded sqlite file, selected by configuration.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/ledgerline/receipt-recon/internal/common"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Timestamp and date storage formats; both engines store them as text.
const (
	timeLayout = time.RFC3339Nano
	dateLayout = "2006-01-02"
)

// Store wraps the opened database handle with its driver flavor.
type Store struct {
	DB     *sql.DB
	Driver string

	pool   *pgxpool.Pool // nil for sqlite
	logger *slog.Logger
}

// Open connects to the configured store. Postgres goes through a pgx pool
// wrapped as database/sql; sqlite opens the file (or :memory:) directly.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Driver {
	case DriverPostgres:
		logger.Info("connecting to database", "driver", cfg.Driver)
		pc, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			logger.Error("failed to parse database config", "error", err)
			return nil, err
		}
		pc.MaxConns = cfg.MaxConns
		pc.MinConns = cfg.MinConns
		pc.MaxConnLifetime = cfg.MaxConnLifetime
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
		pc.ConnConfig.RuntimeParams["application_name"] = "receipt-recon"
		if cfg.StatementTimeout > 0 {
			pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
		}

		dialCtx := ctx
		if cfg.DialTimeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
			defer cancel()
		}
		pool, err := pgxpool.NewWithConfig(dialCtx, pc)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return nil, err
		}
		db := stdlib.OpenDBFromPool(pool)
		logger.Info("successfully connected to database")
		return &Store{DB: db, Driver: DriverPostgres, pool: pool, logger: logger}, nil

	case DriverSQLite:
		logger.Info("opening embedded database", "path", cfg.DSN)
		db, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			logger.Error("failed to open embedded database", "error", err)
			return nil, err
		}
		// Single writer; avoids SQLITE_BUSY under concurrent workers.
		db.SetMaxOpenConns(1)
		return &Store{DB: db, Driver: DriverSQLite, logger: logger}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Close closes the database connections gracefully.
func (s *Store) Close() {
	s.logger.Info("closing database connections")
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			s.logger.Error("failed to close database", "error", err)
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// HealthCheck pings the store to catch DSN issues early.
func (s *Store) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.DB.PingContext(ctx)
}

// stmt returns a statement builder with the placeholder format the driver
// expects.
func (s *Store) stmt() squirrel.StatementBuilderType {
	if s.Driver == DriverPostgres {
		return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	}
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
}
