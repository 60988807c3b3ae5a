package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/naazbooks/storefront/internal/catalog"
	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
)

// ListProductsHandler lists active products filtered by the query string.
func ListProductsHandler(c *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := catalog.ParseFilter(r.URL.Query())
		if err != nil {
			sendError(w, err.Error(), "INVALID_FILTER", http.StatusBadRequest)
			return
		}

		products, err := c.List(r.Context(), filter)
		if err != nil {
			slog.Error("failed to list products", "error", err, "shop", filter.Shop)
			sendError(w, "Failed to list products", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if products == nil {
			products = []models.Product{}
		}
		sendJSON(w, http.StatusOK, models.ProductListResponse{Products: products, Total: len(products)})
	}
}

// GetProductHandler returns one active product.
func GetProductHandler(c *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathInt64(r, "id")
		if err != nil {
			sendError(w, "Invalid product id", "INVALID_REQUEST", http.StatusBadRequest)
			return
		}

		product, err := c.Get(r.Context(), id)
		if errors.Is(err, repository.ErrNotFound) {
			sendError(w, "Product not found", "PRODUCT_NOT_FOUND", http.StatusNotFound)
			return
		}
		if err != nil {
			slog.Error("failed to get product", "error", err, "product_id", id)
			sendError(w, "Failed to get product", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		sendJSON(w, http.StatusOK, product)
	}
}
