package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
)

// CartRepository implements repository.CartRepository for PostgreSQL.
type CartRepository struct {
	pool *Pool
}

// NewCartRepository creates a new PostgreSQL cart repository.
func NewCartRepository(pool *Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetItems returns the lines of a user's cart in the order they were added.
func (r *CartRepository) GetItems(ctx context.Context, userID string) ([]models.CartItem, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT c.product_id, p.name, p.price_minor, c.quantity, p.image_url
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1 AND p.is_active
		ORDER BY c.added_at, c.product_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CartItem, error) {
		var item models.CartItem
		var price int64
		err := row.Scan(&item.ProductID, &item.Name, &price, &item.Quantity, &item.ImageURL)
		item.Price = models.Money(price)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan cart items: %w", err)
	}
	return items, nil
}

// SetQuantity inserts or replaces a line.
func (r *CartRepository) SetQuantity(ctx context.Context, userID string, productID int64, quantity int) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if productID <= 0 || quantity <= 0 {
		return fmt.Errorf("%w: product id and quantity must be positive", repository.ErrInvalidInput)
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO cart_items (user_id, product_id, quantity, added_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id, product_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			updated_at = NOW()`,
		userID, productID, quantity)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("failed to set cart quantity: %w", err)
	}
	return nil
}

// RemoveItem deletes one line.
func (r *CartRepository) RemoveItem(ctx context.Context, userID string, productID int64) error {
	if err := validateUserID(userID); err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID); err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

// Clear deletes every line of a user's cart.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// Ensure CartRepository implements repository.CartRepository.
var _ repository.CartRepository = (*CartRepository)(nil)
