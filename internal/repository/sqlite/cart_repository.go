package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
)

// CartRepository implements repository.CartRepository for SQLite.
type CartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new SQLite cart repository.
func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

// GetItems returns the lines of a user's cart in the order they were added.
func (r *CartRepository) GetItems(ctx context.Context, userID string) ([]models.CartItem, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT c.product_id, p.name, p.price_minor, c.quantity, p.image_url
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = ? AND p.is_active = 1
		ORDER BY c.added_at, c.product_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		var price int64
		if err := rows.Scan(&item.ProductID, &item.Name, &price, &item.Quantity, &item.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		item.Price = models.Money(price)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
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

	now := formatTime(time.Now())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cart_items (user_id, product_id, quantity, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, product_id) DO UPDATE SET
			quantity = excluded.quantity,
			updated_at = excluded.updated_at`,
		userID, productID, quantity, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to set cart quantity: %w", err)
	}
	return nil
}

// RemoveItem deletes one line.
func (r *CartRepository) RemoveItem(ctx context.Context, userID string, productID int64) error {
	if err := validateUserID(userID); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = ? AND product_id = ?`, userID, productID); err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

// Clear deletes every line of a user's cart.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// Ensure CartRepository implements repository.CartRepository.
var _ repository.CartRepository = (*CartRepository)(nil)
