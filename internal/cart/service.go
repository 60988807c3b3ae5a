package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
	"github.com/naazbooks/storefront/internal/storage"
)

// ErrOutOfStock is returned when adding a product with no stock.
var ErrOutOfStock = errors.New("product out of stock")

// Service loads and changes carts. Guests keep their cart in the client's
// local store; signed-in users keep it in cart_items.
type Service struct {
	carts    repository.CartRepository
	products repository.ProductRepository
}

// NewService returns a Service over the cart and product repositories.
// New lines take their name and price from products at the time of the add.
func NewService(carts repository.CartRepository, products repository.ProductRepository) *Service {
	return &Service{carts: carts, products: products}
}

// Load returns the cart of userID, or the guest cart in local when userID is empty.
func (s *Service) Load(ctx context.Context, local storage.Store, userID string) (*Cart, error) {
	if userID == "" {
		return loadGuest(ctx, local), nil
	}

	items, err := s.carts.GetItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return &Cart{Items: items}, nil
}

// AddItem adds quantity units of productID at its current price.
func (s *Service) AddItem(ctx context.Context, local storage.Store, userID string, productID int64, quantity int) (*Cart, error) {
	product, err := s.products.GetByID(ctx, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: product %d does not exist", ErrInvalidItem, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if !product.InStock() {
		return nil, ErrOutOfStock
	}

	cart, err := s.Load(ctx, local, userID)
	if err != nil {
		return nil, err
	}

	err = cart.AddItem(models.CartItem{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Quantity:  quantity,
		ImageURL:  product.ImageURL,
	})
	if err != nil {
		return nil, err
	}

	line, _ := cart.Item(productID)
	return s.save(ctx, local, userID, cart, line)
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
func (s *Service) UpdateQuantity(ctx context.Context, local storage.Store, userID string, productID int64, quantity int) (*Cart, error) {
	cart, err := s.Load(ctx, local, userID)
	if err != nil {
		return nil, err
	}
	if err := cart.UpdateQuantity(productID, quantity); err != nil {
		return nil, err
	}

	line, ok := cart.Item(productID)
	if !ok {
		line = models.CartItem{ProductID: productID}
	}
	return s.save(ctx, local, userID, cart, line)
}

// RemoveItem drops the line of productID. Removing a missing line is not an error.
func (s *Service) RemoveItem(ctx context.Context, local storage.Store, userID string, productID int64) (*Cart, error) {
	cart, err := s.Load(ctx, local, userID)
	if err != nil {
		return nil, err
	}
	cart.RemoveItem(productID)
	return s.save(ctx, local, userID, cart, models.CartItem{ProductID: productID})
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, local storage.Store, userID string) error {
	if userID == "" {
		clearGuest(ctx, local)
		return nil
	}
	if err := s.carts.Clear(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// MergeGuestCart moves the guest cart in local into the cart of userID and
// clears the guest cart. Quantities of shared products are added.
func (s *Service) MergeGuestCart(ctx context.Context, local storage.Store, userID string) (*Cart, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", repository.ErrInvalidInput)
	}

	guest := loadGuest(ctx, local)
	user, err := s.Load(ctx, local, userID)
	if err != nil {
		return nil, err
	}
	if len(guest.Items) == 0 {
		return user, nil
	}

	for _, item := range guest.Items {
		if _, err := s.products.GetByID(ctx, item.ProductID); err != nil {
			slog.Debug("dropping guest cart line", "product_id", item.ProductID, "error", err)
			continue
		}
		if err := user.AddItem(item); err != nil {
			slog.Debug("dropping guest cart line", "product_id", item.ProductID, "error", err)
			continue
		}
		line, _ := user.Item(item.ProductID)
		if err := s.carts.SetQuantity(ctx, userID, line.ProductID, line.Quantity); err != nil {
			return nil, fmt.Errorf("failed to merge cart: %w", err)
		}
	}

	clearGuest(ctx, local)
	slog.Info("merged guest cart", "user_id", userID, "lines", len(guest.Items))
	return s.Load(ctx, local, userID)
}

// save persists the change to line. Guest carts are rewritten whole.
func (s *Service) save(ctx context.Context, local storage.Store, userID string, cart *Cart, line models.CartItem) (*Cart, error) {
	if userID == "" {
		saveGuest(ctx, local, cart)
		return cart, nil
	}

	var err error
	if line.Quantity > 0 {
		err = s.carts.SetQuantity(ctx, userID, line.ProductID, line.Quantity)
	} else {
		err = s.carts.RemoveItem(ctx, userID, line.ProductID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	return s.Load(ctx, local, userID)
}

// loadGuest reads the guest cart, migrating it from the legacy key when
// only that exists. Unreadable data yields an empty cart.
func loadGuest(ctx context.Context, local storage.Store) *Cart {
	var items []models.CartItem

	ok, err := storage.GetJSON(ctx, local, storage.KeyCart, &items)
	if err != nil {
		slog.Debug("guest cart unreadable", "error", err)
		return &Cart{}
	}
	if ok {
		return &Cart{Items: items}
	}

	ok, err = storage.GetJSON(ctx, local, storage.KeyCartLegacy, &items)
	if err != nil || !ok {
		return &Cart{}
	}

	cart := &Cart{Items: items}
	saveGuest(ctx, local, cart)
	if err := local.Delete(ctx, storage.KeyCartLegacy); err != nil {
		slog.Debug("failed to remove legacy cart", "error", err)
	}
	return cart
}

func saveGuest(ctx context.Context, local storage.Store, cart *Cart) {
	items := cart.Items
	if items == nil {
		items = []models.CartItem{}
	}
	if err := storage.SetJSON(ctx, local, storage.KeyCart, items); err != nil {
		slog.Debug("guest cart not persisted", "error", err)
	}
}

func clearGuest(ctx context.Context, local storage.Store) {
	for _, key := range []string{storage.KeyCart, storage.KeyCartLegacy} {
		if err := local.Delete(ctx, key); err != nil {
			slog.Debug("failed to clear guest cart", "error", err, "key", key)
		}
	}
}
