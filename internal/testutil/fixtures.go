package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
)

// SampleSession returns an active session expiring in 24 hours
func SampleSession() *models.SessionInfo {
	now := time.Now().UTC()
	return &models.SessionInfo{
		SessionID:    "6f1c2a9e-3b7d-4e21-9a55-0c8f4d2b1e70",
		UserID:       "user-1",
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(24 * time.Hour),
		IsActive:     true,
		DeviceInfo:   "Mozilla/5.0 (X11; Linux x86_64)",
		IPAddress:    "192.0.2.10",
	}
}

// SampleProduct returns an active in-stock product of the books shop
func SampleProduct() *models.Product {
	return &models.Product{
		ShopSlug: "books",
		Name:     "Riyad as-Salihin",
		Slug:     "riyad-as-salihin",
		Category: "hadith",
		Price:    1000,
		Stock:    10,
		IsActive: true,
	}
}

// SeedProducts inserts products through repos and returns them with IDs set
func SeedProducts(t *testing.T, repos *repository.Repositories, products ...*models.Product) []*models.Product {
	t.Helper()

	for _, p := range products {
		if err := repos.Products.Create(context.Background(), p); err != nil {
			t.Fatalf("failed to seed product %q: %v", p.Slug, err)
		}
	}
	return products
}
