package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/naazbooks/storefront/internal/database"
	"github.com/naazbooks/storefront/internal/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	// Force single connection for in-memory databases
	db.SetMaxOpenConns(1)

	if err := database.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// createTestProduct inserts an active product with the given slug and price.
func createTestProduct(t *testing.T, db *sql.DB, slug string, price models.Money) *models.Product {
	t.Helper()

	p := &models.Product{
		ShopSlug: "books",
		Name:     "Product " + slug,
		Slug:     slug,
		Category: "quran",
		Price:    price,
		Stock:    10,
		IsActive: true,
	}
	if err := NewProductRepository(db).Create(context.Background(), p); err != nil {
		t.Fatalf("failed to create product %s: %v", slug, err)
	}
	return p
}

// createTestSession inserts an active session for userID whose last activity is at.
func createTestSession(t *testing.T, db *sql.DB, sessionID, userID string, at time.Time) {
	t.Helper()

	s := &models.SessionInfo{
		SessionID:    sessionID,
		UserID:       userID,
		CreatedAt:    at,
		LastActivity: at,
		ExpiresAt:    at.Add(24 * time.Hour),
		IsActive:     true,
	}
	if err := NewSessionRepository(db).Create(context.Background(), s); err != nil {
		t.Fatalf("failed to create session %s: %v", sessionID, err)
	}
}
