package sqlite

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/naazbooks/storefront/internal/database"
	"github.com/naazbooks/storefront/internal/repository"
)

// HealthRepository implements health checks for SQLite databases.
type HealthRepository struct {
	db     *sql.DB
	dbPath string
}

// NewHealthRepository creates a new SQLite health repository.
func NewHealthRepository(db *sql.DB, dbPath string) *HealthRepository {
	return &HealthRepository{
		db:     db,
		dbPath: dbPath,
	}
}

// Ping performs a basic connectivity check to the database.
// For SQLite, this pings the database connection pool.
func (r *HealthRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// slowQuery is the SELECT 1 latency above which SQLite is reported
// degraded; it usually means writers are contending for the lock.
const slowQuery = 100 * time.Millisecond

// CheckHealth times a trivial query.
func (r *HealthRepository) CheckHealth(ctx context.Context) (*repository.ComponentHealth, error) {
	start := time.Now()
	var result int
	err := r.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	latency := time.Since(start)

	health := &repository.ComponentHealth{
		Name:      "sqlite",
		Status:    repository.HealthStatusHealthy,
		LatencyMS: latency.Milliseconds(),
	}
	switch {
	case err != nil:
		health.Status = repository.HealthStatusUnhealthy
		health.Message = "database query failed"
		return health, err
	case latency > slowQuery:
		health.Status = repository.HealthStatusDegraded
		health.Message = "high query latency"
	}
	return health, nil
}

// CheckSchema reports pending and drifted migrations.
func (r *HealthRepository) CheckSchema(ctx context.Context) (*repository.SchemaState, error) {
	status, err := database.GetMigrationStatus(r.db)
	if err != nil {
		return nil, err
	}

	state := &repository.SchemaState{}
	for _, m := range status {
		switch {
		case m.Drifted:
			state.Drifted = append(state.Drifted, m.Name)
		case m.Applied:
			state.Applied++
		default:
			state.Pending = append(state.Pending, m.Name)
		}
	}
	return state, nil
}

// GetDatabaseStats returns SQLite-specific statistics.
func (r *HealthRepository) GetDatabaseStats(ctx context.Context) (map[string]any, error) {
	stats := make(map[string]any)

	// Get page count and page size
	var pageCount, pageSize int64
	if err := r.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}

	stats["page_count"] = pageCount
	stats["page_size"] = pageSize
	stats["size_bytes"] = pageCount * pageSize
	stats["size_mb"] = float64(pageCount*pageSize) / 1024 / 1024

	// Get index count
	var indexCount int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='index'").Scan(&indexCount); err != nil {
		return nil, err
	}
	stats["index_count"] = indexCount

	// Row counts of the tables that grow without bound between retention sweeps
	for _, table := range []string{"rate_limit_entries", "rate_limit_logs", "csrf_validation_logs"} {
		var n int64
		if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, err
		}
		stats[table+"_rows"] = n
	}

	var activeSessions int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_sessions WHERE is_active = 1").Scan(&activeSessions); err != nil {
		return nil, err
	}
	stats["active_sessions"] = activeSessions

	// Get WAL file size if it exists
	walPath := r.dbPath + "-wal"
	if info, err := os.Stat(walPath); err == nil {
		stats["wal_size_bytes"] = info.Size()
	}

	// Get connection pool stats
	dbStats := r.db.Stats()
	stats["pool_open_connections"] = dbStats.OpenConnections
	stats["pool_in_use"] = dbStats.InUse
	stats["pool_idle"] = dbStats.Idle
	stats["pool_wait_count"] = dbStats.WaitCount
	stats["pool_wait_duration_ms"] = dbStats.WaitDuration.Milliseconds()

	return stats, nil
}

// Ensure HealthRepository implements repository.HealthRepository.
var _ repository.HealthRepository = (*HealthRepository)(nil)
