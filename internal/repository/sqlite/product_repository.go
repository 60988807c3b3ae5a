package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
)

const productColumns = `id, shop_slug, name, slug, category, description, price_minor, stock, image_url, is_active, created_at`

// ProductRepository implements repository.ProductRepository for SQLite.
type ProductRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new SQLite product repository.
func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
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

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO products (shop_slug, name, slug, category, description, price_minor, stock, image_url, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ShopSlug, p.Name, p.Slug, p.Category, p.Description, int64(p.Price), p.Stock,
		p.ImageURL, boolToInt(p.IsActive), formatTime(p.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get product id: %w", err)
	}
	p.ID = id
	return nil
}

// GetByID returns an active product.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	if id <= 0 {
		return nil, repository.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ? AND is_active = 1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// ListActive returns the active products of one shop, or of every shop when shopSlug is empty.
func (r *ProductRepository) ListActive(ctx context.Context, shopSlug string) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE is_active = 1`
	args := []any{}
	if shopSlug != "" {
		query += ` AND shop_slug = ?`
		args = append(args, shopSlug)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	var price int64
	var isActive int
	var createdAt string
	if err := row.Scan(&p.ID, &p.ShopSlug, &p.Name, &p.Slug, &p.Category, &p.Description,
		&price, &p.Stock, &p.ImageURL, &isActive, &createdAt); err != nil {
		return nil, err
	}

	t, err := parseTimestamp(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	p.CreatedAt = t
	p.Price = models.Money(price)
	p.IsActive = isActive == 1
	return &p, nil
}

// Ensure ProductRepository implements repository.ProductRepository.
var _ repository.ProductRepository = (*ProductRepository)(nil)
