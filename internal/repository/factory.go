package repository

// DatabaseType identifies the backend behind a Repositories value.
type DatabaseType string

const (
	DatabaseTypeSQLite     DatabaseType = "sqlite"
	DatabaseTypePostgreSQL DatabaseType = "postgresql"
)

// Repositories holds all repository implementations.
// This struct provides a single point of access to all data access layers.
type Repositories struct {
	SecurityLogs SecurityLogRepository
	Sessions     SessionRepository
	Products     ProductRepository
	Carts        CartRepository
	RateLimits   RateLimitRepository
	Health       HealthRepository

	DatabaseType DatabaseType

	// Cleanup releases the underlying connection or pool. It may be nil when
	// the caller owns the connection.
	Cleanup func()
}

// Close runs Cleanup if it is set.
func (r *Repositories) Close() {
	if r != nil && r.Cleanup != nil {
		r.Cleanup()
	}
}
