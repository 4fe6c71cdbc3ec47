// Package pgaudit is an optional, best-effort durable mirror of the audit
// ledger (spec §11). The JSONL ledger in internal/audit remains the single
// source of truth (spec §4.3/§9); Postgres only accelerates the admin
// API's indexed filtering by actor/tool/decision, which a JSONL tail
// cannot do efficiently. Adapted from the teacher's
// internal/repository/postgres/postgres.go connection-pool plumbing.
package pgaudit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Config holds PostgreSQL connection configuration for the audit mirror.
type Config struct {
	URL      string // AGENTSAFE_DATABASE_URL, takes precedence over the discrete fields below
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// DB wraps the PostgreSQL connection pool used by the audit mirror.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new PostgreSQL connection pool and ensures the audit_events
// table exists. The password is set via the pool config struct, never
// embedded in the DSN string, so it cannot leak through error-path string
// representations.
func New(ctx context.Context, cfg Config) (*DB, error) {
	dsn := cfg.URL
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s@%s:%d/%s?sslmode=%s",
			cfg.User, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
		)
	}

	if cfg.MaxConns == 0 {
		cfg.MaxConns = 10
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	if cfg.URL == "" {
		poolCfg.ConnConfig.Password = cfg.Password
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db := &DB{Pool: pool}
	if err := db.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("audit mirror connected")
	return db, nil
}

func (db *DB) ensureSchema(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_events (
			id BIGSERIAL PRIMARY KEY,
			request_id TEXT NOT NULL,
			actor TEXT NOT NULL,
			tool TEXT NOT NULL,
			decision TEXT NOT NULL,
			rule_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_audit_events_actor ON audit_events (actor);
		CREATE INDEX IF NOT EXISTS idx_audit_events_tool ON audit_events (tool);
		CREATE INDEX IF NOT EXISTS idx_audit_events_decision ON audit_events (decision);
	`)
	if err != nil {
		return fmt.Errorf("ensuring audit_events schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Info().Msg("audit mirror connection closed")
	}
}

// Health reports whether the pool can reach the database.
func (db *DB) Health(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("audit mirror pool not initialized")
	}
	return db.Pool.Ping(ctx)
}
