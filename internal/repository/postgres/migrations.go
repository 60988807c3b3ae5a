package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrMigrationDrift is returned when an applied migration's SQL has changed
// since it ran.
var ErrMigrationDrift = errors.New("applied migration was modified")

// Migration represents a database migration.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         string
}

// migrations contains all PostgreSQL schema migrations in order.
var migrations = []Migration{
	{
		Version:     1,
		Name:        "001_security_logs",
		Description: "Best-effort security logs written by the audit queue",
		SQL: `
CREATE TABLE IF NOT EXISTS rate_limit_logs (
    id BIGSERIAL PRIMARY KEY,
    rate_key TEXT NOT NULL,
    action TEXT NOT NULL,
    success BOOLEAN NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_rate_limit_logs_created_at ON rate_limit_logs(created_at);

CREATE TABLE IF NOT EXISTS rate_limit_violations (
    id BIGSERIAL PRIMARY KEY,
    rate_key TEXT NOT NULL,
    action TEXT NOT NULL,
    request_count INTEGER NOT NULL,
    max_requests INTEGER NOT NULL,
    window_ms BIGINT NOT NULL,
    blocked_until TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_rate_limit_violations_key ON rate_limit_violations(rate_key);
CREATE INDEX IF NOT EXISTS idx_rate_limit_violations_created_at ON rate_limit_violations(created_at DESC);

CREATE TABLE IF NOT EXISTS csrf_validation_logs (
    id BIGSERIAL PRIMARY KEY,
    session_id TEXT NOT NULL DEFAULT '',
    token_hint TEXT NOT NULL DEFAULT '',
    is_valid BOOLEAN NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_csrf_validation_logs_created_at ON csrf_validation_logs(created_at);
`,
	},
	{
		Version:     2,
		Name:        "002_user_sessions",
		Description: "Mirrored client sessions; rows are deactivated, never deleted",
		SQL: `
CREATE TABLE IF NOT EXISTS user_sessions (
    session_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    last_activity TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    device_info TEXT NOT NULL DEFAULT '',
    ip_address TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_user_sessions_user_active ON user_sessions(user_id, is_active);
CREATE INDEX IF NOT EXISTS idx_user_sessions_last_activity ON user_sessions(last_activity DESC);
`,
	},
	{
		Version:     3,
		Name:        "003_catalog",
		Description: "Products of all shops and signed-in user carts",
		SQL: `
CREATE TABLE IF NOT EXISTS products (
    id BIGSERIAL PRIMARY KEY,
    shop_slug TEXT NOT NULL,
    name TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    category TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    price_minor BIGINT NOT NULL CHECK (price_minor >= 0),
    stock INTEGER NOT NULL DEFAULT 0,
    image_url TEXT NOT NULL DEFAULT '',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_products_shop ON products(shop_slug, is_active);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);

CREATE TABLE IF NOT EXISTS cart_items (
    user_id TEXT NOT NULL,
    product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    quantity INTEGER NOT NULL CHECK (quantity > 0),
    added_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, product_id)
);
`,
	},
	{
		Version:     4,
		Name:        "004_rate_limit_entries",
		Description: "Shared rate limit counters for multi-instance deployments",
		SQL: `
CREATE TABLE IF NOT EXISTS rate_limit_entries (
    rate_key TEXT PRIMARY KEY,
    request_count INTEGER NOT NULL DEFAULT 0,
    window_start TIMESTAMPTZ NOT NULL,
    blocked_until TIMESTAMPTZ,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_rate_limit_entries_window_start ON rate_limit_entries(window_start);
`,
	},
}

// checksum returns the hex sha256 of a migration body.
func checksum(sqlText string) string {
	sum := sha256.Sum256([]byte(sqlText))
	return hex.EncodeToString(sum[:])
}

// RunMigrations applies pending migrations in version order. Applied
// migrations whose SQL changed since they ran stop the run with
// ErrMigrationDrift.
func RunMigrations(ctx context.Context, pool *Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	applied, err := appliedChecksums(ctx, pool.Pool)
	if err != nil {
		return err
	}

	count := 0
	for _, m := range migrations {
		sum := checksum(m.SQL)
		if recorded, ok := applied[m.Version]; ok {
			if recorded != sum {
				return fmt.Errorf("%w: %s", ErrMigrationDrift, m.Name)
			}
			continue
		}

		slog.Info("applying migration", "migration", m.Name, "description", m.Description)
		if err := applyMigration(ctx, pool, m, sum); err != nil {
			return err
		}
		count++
	}

	if count > 0 {
		slog.Info("PostgreSQL schema up to date", "applied", count)
	}
	return nil
}

func applyMigration(ctx context.Context, pool *Pool, m Migration, sum string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin migration %s: %w", m.Name, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", m.Name, err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, name, checksum) VALUES ($1, $2, $3)",
		m.Version, m.Name, sum,
	); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", m.Name, err)
	}
	return tx.Commit(ctx)
}

func appliedChecksums(ctx context.Context, pool *pgxpool.Pool) (map[int]string, error) {
	rows, err := pool.Query(ctx, "SELECT version, checksum FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]string)
	for rows.Next() {
		var version int
		var sum string
		if err := rows.Scan(&version, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		applied[version] = sum
	}
	return applied, rows.Err()
}

// MigrationStatus represents the state of one migration in the database.
type MigrationStatus struct {
	Version     int
	Name        string
	Description string
	Applied     bool
	Drifted     bool
}

// GetMigrationStatus lists every migration with its state. A database
// without schema_migrations reports everything pending.
func GetMigrationStatus(ctx context.Context, pool *pgxpool.Pool) ([]MigrationStatus, error) {
	var exists bool
	if err := pool.QueryRow(ctx, "SELECT to_regclass('schema_migrations') IS NOT NULL").Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to look up schema_migrations: %w", err)
	}

	applied := map[int]string{}
	if exists {
		var err error
		if applied, err = appliedChecksums(ctx, pool); err != nil {
			return nil, err
		}
	}

	status := make([]MigrationStatus, len(migrations))
	for i, m := range migrations {
		recorded, ok := applied[m.Version]
		status[i] = MigrationStatus{
			Version:     m.Version,
			Name:        m.Name,
			Description: m.Description,
			Applied:     ok,
			Drifted:     ok && recorded != checksum(m.SQL),
		}
	}
	return status, nil
}
