// Package database opens the bun handle shared by the stores and creates
// the schema when migrations are not in play.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-seating/internal/config"
	"ms-seating/internal/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the configured database, retrying the first ping.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		err   error
	)

	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 1
	}

	for i := 0; i < retries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to %s (attempt %d/%d)", cfg.Driver, i+1, retries))
		sqldb, err = openSQL(cfg)
		if err == nil {
			if err = sqldb.PingContext(ctx); err == nil {
				break
			}
			sqldb.Close()
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to %s: %v", cfg.Driver, err))
		if i < retries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.ConnectInterval):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s after %d attempts: %w", cfg.Driver, retries, err)
	}

	if cfg.Driver == DriverSQLite {
		// SQLite has a single writer.
		sqldb.SetMaxOpenConns(1)
		log.Info("DATABASE", "✅ SQLite connection successful")
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func openSQL(cfg config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return sql.Open("postgres", cfg.DSN)
	case DriverSQLite:
		return sql.Open(sqliteshim.ShimName, cfg.DSN)
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}
