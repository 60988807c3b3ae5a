package sqlite

import (
	"database/sql"

	"github.com/naazbooks/storefront/internal/config"
	"github.com/naazbooks/storefront/internal/repository"
)

// NewRepositories creates all SQLite repository implementations.
// The cfg parameter is included for consistency with other database backends.
// The db parameter must be a valid, open database connection.
//
// Returns the repositories struct with DatabaseType set to "sqlite" and
// a Cleanup function that closes the database connection.
func NewRepositories(cfg *config.Config, db *sql.DB) (*repository.Repositories, error) {
	if db == nil {
		return nil, repository.ErrNilDatabase
	}

	// Handle nil config gracefully for testing scenarios
	dbPath := ""
	if cfg != nil {
		dbPath = cfg.DBPath
	}

	return &repository.Repositories{
		SecurityLogs: NewSecurityLogRepository(db),
		Sessions:     NewSessionRepository(db),
		Products:     NewProductRepository(db),
		Carts:        NewCartRepository(db),
		RateLimits:   NewRateLimitRepository(db),
		Health:       NewHealthRepository(db, dbPath),
		DatabaseType: repository.DatabaseTypeSQLite,
		Cleanup: func() {
			db.Close()
		},
	}, nil
}
