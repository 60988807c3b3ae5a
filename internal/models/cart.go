package models

// CartItem is one line of a cart.
type CartItem struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Price     Money  `json:"price"`
	Quantity  int    `json:"quantity"`
	ImageURL  string `json:"image_url,omitempty"`
}

// LineTotal returns price times quantity.
func (i CartItem) LineTotal() Money {
	return i.Price * Money(i.Quantity)
}

// CartResponse is the JSON form of a cart with its totals
type CartResponse struct {
	Items      []CartItem `json:"items"`
	TotalItems int        `json:"total_items"`
	Subtotal   Money      `json:"subtotal"`
}

// AddCartItemRequest is the request body for adding a product to the cart
type AddCartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// UpdateCartItemRequest is the request body for changing a line quantity
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}
