package database

import (
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrMigrationDrift is returned when an applied migration's SQL has changed
// since it ran. The schema then no longer matches the embedded files.
var ErrMigrationDrift = errors.New("applied migration was modified")

// Migration is one embedded schema file and its state in a database.
type Migration struct {
	Version  int
	Name     string
	Checksum string // sha256 of the embedded SQL
	Applied  bool
	Drifted  bool // Applied with a different checksum
}

type migrationFile struct {
	Migration
	sql string
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    checksum TEXT NOT NULL,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// Checksum returns the hex sha256 of a migration body.
func Checksum(sqlText string) string {
	sum := sha256.Sum256([]byte(sqlText))
	return hex.EncodeToString(sum[:])
}

// loadMigrations reads the embedded files ordered by version. File names
// must start with a numeric version followed by an underscore.
func loadMigrations() ([]migrationFile, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []migrationFile
	seen := make(map[int]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		prefix, _, ok := strings.Cut(name, "_")
		version, err := strconv.Atoi(prefix)
		if !ok || err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s has no version prefix", name)
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", other, name, version)
		}
		seen[version] = name

		body, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		files = append(files, migrationFile{
			Migration: Migration{Version: version, Name: name, Checksum: Checksum(string(body))},
			sql:       string(body),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

// appliedChecksums maps applied migration versions to their recorded checksum.
func appliedChecksums(db *sql.DB) (map[int]string, error) {
	rows, err := db.Query("SELECT version, checksum FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]string)
	for rows.Next() {
		var version int
		var checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, err
		}
		applied[version] = checksum
	}
	return applied, rows.Err()
}

// RunMigrations applies pending migrations in version order, each in its
// own transaction. It refuses to run when an applied migration drifted.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec(schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	files, err := loadMigrations()
	if err != nil {
		return err
	}
	applied, err := appliedChecksums(db)
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	count := 0
	for _, f := range files {
		if recorded, ok := applied[f.Version]; ok {
			if recorded != f.Checksum {
				return fmt.Errorf("%w: %s", ErrMigrationDrift, f.Name)
			}
			continue
		}

		if err := applyMigration(db, f); err != nil {
			return err
		}
		slog.Info("migration applied", "migration", f.Name, "version", f.Version)
		count++
	}

	if count > 0 {
		slog.Info("schema up to date", "applied", count)
	}
	return nil
}

func applyMigration(db *sql.DB, f migrationFile) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration %s: %w", f.Name, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(f.sql); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", f.Name, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name, checksum) VALUES (?, ?, ?)",
		f.Version, f.Name, f.Checksum,
	); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", f.Name, err)
	}
	return tx.Commit()
}

// GetMigrationStatus lists every embedded migration with its state in db.
// A database that was never migrated reports everything pending.
func GetMigrationStatus(db *sql.DB) ([]Migration, error) {
	files, err := loadMigrations()
	if err != nil {
		return nil, err
	}

	var exists int
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'",
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to look up schema_migrations: %w", err)
	}

	applied := map[int]string{}
	if exists > 0 {
		if applied, err = appliedChecksums(db); err != nil {
			return nil, fmt.Errorf("failed to read applied migrations: %w", err)
		}
	}

	status := make([]Migration, len(files))
	for i, f := range files {
		m := f.Migration
		if recorded, ok := applied[m.Version]; ok {
			m.Applied = true
			m.Drifted = recorded != m.Checksum
		}
		status[i] = m
	}
	return status, nil
}
