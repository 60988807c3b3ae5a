package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/naazbooks/storefront/internal/cart"
	"github.com/naazbooks/storefront/internal/middleware"
	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/session"
)

// GetCartHandler returns the cart of the signed-in user or of the guest client.
func GetCartHandler(carts *cart.Service, tracker *session.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := carts.Load(r.Context(), middleware.RequestScope(r).Local, currentUserID(r, tracker))
		if err != nil {
			sendCartError(w, err)
			return
		}
		sendJSON(w, http.StatusOK, c.Response())
	}
}

// AddCartItemHandler adds a product to the cart.
func AddCartItemHandler(carts *cart.Service, tracker *session.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.AddCartItemRequest
		if err := decodeJSON(w, r, &req); err != nil {
			sendError(w, "Invalid request body", "INVALID_REQUEST", http.StatusBadRequest)
			return
		}

		local := middleware.RequestScope(r).Local
		c, err := carts.AddItem(r.Context(), local, currentUserID(r, tracker), req.ProductID, req.Quantity)
		if err != nil {
			sendCartError(w, err)
			return
		}
		tracker.RecordActivity(r.Context(), local)
		sendJSON(w, http.StatusOK, c.Response())
	}
}

// UpdateCartItemHandler sets the quantity of a cart line. Zero removes it.
func UpdateCartItemHandler(carts *cart.Service, tracker *session.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathInt64(r, "productID")
		if err != nil {
			sendError(w, "Invalid product id", "INVALID_REQUEST", http.StatusBadRequest)
			return
		}
		var req models.UpdateCartItemRequest
		if err := decodeJSON(w, r, &req); err != nil {
			sendError(w, "Invalid request body", "INVALID_REQUEST", http.StatusBadRequest)
			return
		}

		local := middleware.RequestScope(r).Local
		c, err := carts.UpdateQuantity(r.Context(), local, currentUserID(r, tracker), productID, req.Quantity)
		if err != nil {
			sendCartError(w, err)
			return
		}
		tracker.RecordActivity(r.Context(), local)
		sendJSON(w, http.StatusOK, c.Response())
	}
}

// RemoveCartItemHandler drops a cart line.
func RemoveCartItemHandler(carts *cart.Service, tracker *session.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathInt64(r, "productID")
		if err != nil {
			sendError(w, "Invalid product id", "INVALID_REQUEST", http.StatusBadRequest)
			return
		}

		local := middleware.RequestScope(r).Local
		c, err := carts.RemoveItem(r.Context(), local, currentUserID(r, tracker), productID)
		if err != nil {
			sendCartError(w, err)
			return
		}
		tracker.RecordActivity(r.Context(), local)
		sendJSON(w, http.StatusOK, c.Response())
	}
}

// ClearCartHandler empties the cart.
func ClearCartHandler(carts *cart.Service, tracker *session.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		local := middleware.RequestScope(r).Local
		if err := carts.Clear(r.Context(), local, currentUserID(r, tracker)); err != nil {
			sendCartError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func sendCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidItem):
		sendError(w, err.Error(), "INVALID_ITEM", http.StatusBadRequest)
	case errors.Is(err, cart.ErrOutOfStock):
		sendError(w, "Product is out of stock", "OUT_OF_STOCK", http.StatusConflict)
	case errors.Is(err, cart.ErrItemNotFound):
		sendError(w, "Item is not in the cart", "ITEM_NOT_FOUND", http.StatusNotFound)
	default:
		slog.Error("cart operation failed", "error", err)
		sendError(w, "Cart operation failed", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
