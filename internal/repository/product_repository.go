package repository

import (
	"context"

	"github.com/naazbooks/storefront/internal/models"
)

// ProductRepository provides read access to the catalog, plus Create for
// seeding and tests.
type ProductRepository interface {
	// Create inserts a product and sets its ID and CreatedAt.
	// Returns ErrDuplicateKey if the slug is taken.
	Create(ctx context.Context, p *models.Product) error

	// GetByID returns an active product. Returns ErrNotFound otherwise.
	GetByID(ctx context.Context, id int64) (*models.Product, error)

	// ListActive returns the active products of one shop, or of every shop
	// when shopSlug is empty, ordered by id.
	ListActive(ctx context.Context, shopSlug string) ([]models.Product, error)
}
