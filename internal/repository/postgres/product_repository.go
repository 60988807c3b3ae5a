package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
)

const productColumns = `id, shop_slug, name, slug, category, description, price_minor, stock, image_url, is_active, created_at`

// ProductRepository implements repository.ProductRepository for PostgreSQL.
type ProductRepository struct {
	pool *Pool
}

// NewProductRepository creates a new PostgreSQL product repository.
func NewProductRepository(pool *Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create inserts a product and sets its ID and CreatedAt.
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	if p == nil {
		return fmt.Errorf("%w: product cannot be nil", repository.ErrInvalidInput)
	}
	if p.ShopSlug == "" || p.Name == "" || p.Slug == "" {
		return fmt.Errorf("%w: product needs shop, name and slug", repository.ErrInvalidInput)
	}
	if p.Price < 0 || p.Stock < 0 {
		return fmt.Errorf("%w: price and stock cannot be negative", repository.ErrInvalidInput)
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (shop_slug, name, slug, category, description, price_minor, stock, image_url, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		p.ShopSlug, p.Name, p.Slug, p.Category, p.Description, int64(p.Price), p.Stock,
		p.ImageURL, p.IsActive, p.CreatedAt.UTC(),
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// GetByID returns an active product.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	if id <= 0 {
		return nil, repository.ErrNotFound
	}

	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND is_active`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// ListActive returns the active products of one shop, or of every shop when shopSlug is empty.
func (r *ProductRepository) ListActive(ctx context.Context, shopSlug string) ([]models.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products
		WHERE is_active AND ($1 = '' OR shop_slug = $1)
		ORDER BY id`, shopSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan products: %w", err)
	}
	return products, nil
}

func scanProduct(row pgx.Row) (models.Product, error) {
	var p models.Product
	var price int64
	err := row.Scan(&p.ID, &p.ShopSlug, &p.Name, &p.Slug, &p.Category, &p.Description,
		&price, &p.Stock, &p.ImageURL, &p.IsActive, &p.CreatedAt)
	p.Price = models.Money(price)
	return p, err
}

// Ensure ProductRepository implements repository.ProductRepository.
var _ repository.ProductRepository = (*ProductRepository)(nil)
