package models

import "time"

// Product is a catalog entry of one shop.
type Product struct {
	ID          int64     `json:"id"`
	ShopSlug    string    `json:"shop"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Price       Money     `json:"price"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"image_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// InStock reports whether at least one unit is available.
func (p *Product) InStock() bool {
	return p.Stock > 0
}

// ProductListResponse is the JSON response for product listings
type ProductListResponse struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
}
