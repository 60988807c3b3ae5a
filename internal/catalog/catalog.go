// Package catalog filters and sorts the product listings of the shops.
package catalog

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
	"github.com/naazbooks/storefront/internal/utils"
)

// Sort orders.
const (
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortName      = "name"
	SortNewest    = "newest"
)

// Filter selects products. Zero fields do not filter.
type Filter struct {
	Shop        string
	Category    string
	MinPrice    models.Money
	MaxPrice    models.Money
	Query       string
	InStockOnly bool
	Sort        string
}

// ParseFilter reads a filter from query parameters: shop, category,
// min_price, max_price, q, in_stock and sort.
func ParseFilter(values url.Values) (Filter, error) {
	f := Filter{
		Shop:     strings.TrimSpace(values.Get("shop")),
		Category: strings.TrimSpace(values.Get("category")),
		Query:    utils.SanitizeSearchQuery(values.Get("q")),
		Sort:     values.Get("sort"),
	}

	var err error
	if v := values.Get("min_price"); v != "" {
		if f.MinPrice, err = models.ParseMoney(v); err != nil {
			return Filter{}, fmt.Errorf("invalid min_price: %w", err)
		}
	}
	if v := values.Get("max_price"); v != "" {
		if f.MaxPrice, err = models.ParseMoney(v); err != nil {
			return Filter{}, fmt.Errorf("invalid max_price: %w", err)
		}
	}
	if f.MaxPrice > 0 && f.MinPrice > f.MaxPrice {
		return Filter{}, fmt.Errorf("min_price cannot exceed max_price")
	}
	if v := values.Get("in_stock"); v != "" {
		if f.InStockOnly, err = strconv.ParseBool(v); err != nil {
			return Filter{}, fmt.Errorf("invalid in_stock: %w", err)
		}
	}

	switch f.Sort {
	case "", SortPriceAsc, SortPriceDesc, SortName, SortNewest:
	default:
		return Filter{}, fmt.Errorf("unknown sort %q", f.Sort)
	}
	return f, nil
}

type predicate func(p *models.Product) bool

func (f Filter) predicates() []predicate {
	var preds []predicate

	if f.Category != "" {
		preds = append(preds, func(p *models.Product) bool {
			return strings.EqualFold(p.Category, f.Category)
		})
	}
	if f.MinPrice > 0 {
		preds = append(preds, func(p *models.Product) bool { return p.Price >= f.MinPrice })
	}
	if f.MaxPrice > 0 {
		preds = append(preds, func(p *models.Product) bool { return p.Price <= f.MaxPrice })
	}
	if f.InStockOnly {
		preds = append(preds, (*models.Product).InStock)
	}
	if q := strings.ToLower(utils.SanitizeSearchQuery(f.Query)); q != "" {
		preds = append(preds, func(p *models.Product) bool {
			return strings.Contains(strings.ToLower(p.Name), q) ||
				strings.Contains(strings.ToLower(p.Description), q) ||
				strings.Contains(strings.ToLower(p.Category), q)
		})
	}
	return preds
}

// Apply returns the products matching f in the order f asks for. The
// input slice is not modified.
func (f Filter) Apply(products []models.Product) []models.Product {
	preds := f.predicates()

	out := make([]models.Product, 0, len(products))
next:
	for i := range products {
		p := &products[i]
		if f.Shop != "" && p.ShopSlug != f.Shop {
			continue
		}
		for _, match := range preds {
			if !match(p) {
				continue next
			}
		}
		out = append(out, *p)
	}

	sortProducts(out, f.Sort)
	return out
}

func sortProducts(products []models.Product, order string) {
	var less func(a, b *models.Product) bool
	switch order {
	case SortPriceAsc:
		less = func(a, b *models.Product) bool { return a.Price < b.Price }
	case SortPriceDesc:
		less = func(a, b *models.Product) bool { return a.Price > b.Price }
	case SortName:
		less = func(a, b *models.Product) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case SortNewest:
		less = func(a, b *models.Product) bool {
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.ID > b.ID
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
	default:
		return
	}
	sort.SliceStable(products, func(i, j int) bool { return less(&products[i], &products[j]) })
}

// Catalog lists products from the repository.
type Catalog struct {
	products repository.ProductRepository
}

func New(products repository.ProductRepository) *Catalog {
	return &Catalog{products: products}
}

// List returns the active products matching f.
func (c *Catalog) List(ctx context.Context, f Filter) ([]models.Product, error) {
	products, err := c.products.ListActive(ctx, f.Shop)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return f.Apply(products), nil
}

// Get returns one active product. It returns repository.ErrNotFound for
// unknown or inactive products.
func (c *Catalog) Get(ctx context.Context, id int64) (*models.Product, error) {
	p, err := c.products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return p, nil
}
