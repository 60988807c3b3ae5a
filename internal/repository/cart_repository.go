package repository

import (
	"context"

	"github.com/naazbooks/storefront/internal/models"
)

// CartRepository persists the carts of signed-in users in cart_items.
// Prices and names are always read from products, never stored with the line.
type CartRepository interface {
	// GetItems returns the lines of a user's cart in the order they were added.
	// Lines whose product is no longer active are omitted.
	GetItems(ctx context.Context, userID string) ([]models.CartItem, error)

	// SetQuantity inserts or replaces a line. quantity must be positive.
	SetQuantity(ctx context.Context, userID string, productID int64, quantity int) error

	// RemoveItem deletes one line. Removing a missing line is not an error.
	RemoveItem(ctx context.Context, userID string, productID int64) error

	// Clear deletes every line of a user's cart.
	Clear(ctx context.Context, userID string) error
}
