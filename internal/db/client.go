// Package db is the Postgres persistence layer: assets, tagging runs,
// results, labels, error rows, and embeddings.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps sql.DB with the asset-store queries.
type DB struct {
	*sql.DB
	logger *slog.Logger
}

// New opens a Postgres connection pool and verifies it with a ping.
func New(ctx context.Context, databaseURL string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{DB: sqlDB, logger: logger}, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.DB.Close()
}

// HealthCheck pings the database.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// InitSchema creates all tables and indexes if they do not exist yet.
func (db *DB) InitSchema(ctx context.Context) error {
	db.logger.Info("initializing database schema")
	if _, err := db.ExecContext(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}
