// Package cart holds shopping cart state: a small list of lines reduced by
// add, remove, update and clear, persisted per guest client or per user.
package cart

import (
	"errors"
	"fmt"

	"github.com/naazbooks/storefront/internal/models"
)

// MaxQuantity caps the quantity of a single line.
const MaxQuantity = 99

var (
	// ErrInvalidItem is returned for lines that cannot be added.
	ErrInvalidItem = errors.New("invalid cart item")

	// ErrItemNotFound is returned when a line to change does not exist.
	ErrItemNotFound = errors.New("cart item not found")
)

// Cart is an ordered list of lines with at most one line per product.
// The zero value is an empty cart.
type Cart struct {
	Items []models.CartItem
}

// AddItem adds item to the cart. A line for the same product is merged
// by adding quantities and taking the newer name and price. A zero
// quantity adds one unit.
func (c *Cart) AddItem(item models.CartItem) error {
	if item.ProductID <= 0 {
		return fmt.Errorf("%w: product id must be positive", ErrInvalidItem)
	}
	if item.Price < 0 {
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidItem)
	}
	if item.Quantity < 0 {
		return fmt.Errorf("%w: quantity cannot be negative", ErrInvalidItem)
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}

	if i := c.index(item.ProductID); i >= 0 {
		line := &c.Items[i]
		line.Quantity = capQuantity(line.Quantity + item.Quantity)
		line.Price = item.Price
		if item.Name != "" {
			line.Name = item.Name
		}
		if item.ImageURL != "" {
			line.ImageURL = item.ImageURL
		}
		return nil
	}

	item.Quantity = capQuantity(item.Quantity)
	c.Items = append(c.Items, item)
	return nil
}

// RemoveItem drops the line of productID. It reports whether a line existed.
func (c *Cart) RemoveItem(productID int64) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
func (c *Cart) UpdateQuantity(productID int64, quantity int) error {
	i := c.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	if quantity <= 0 {
		c.RemoveItem(productID)
		return nil
	}
	c.Items[i].Quantity = capQuantity(quantity)
	return nil
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = nil
}

// Item returns the line of productID.
func (c *Cart) Item(productID int64) (models.CartItem, bool) {
	if i := c.index(productID); i >= 0 {
		return c.Items[i], true
	}
	return models.CartItem{}, false
}

func (c *Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

func (c *Cart) Subtotal() models.Money {
	var total models.Money
	for _, item := range c.Items {
		total += item.LineTotal()
	}
	return total
}

// Response returns the JSON form of the cart.
func (c *Cart) Response() models.CartResponse {
	items := c.Items
	if items == nil {
		items = []models.CartItem{}
	}
	return models.CartResponse{
		Items:      items,
		TotalItems: c.TotalItems(),
		Subtotal:   c.Subtotal(),
	}
}

func (c *Cart) index(productID int64) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func capQuantity(q int) int {
	if q > MaxQuantity {
		return MaxQuantity
	}
	return q
}
