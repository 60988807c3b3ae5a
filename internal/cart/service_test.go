package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/storage"
	"github.com/naazbooks/storefront/internal/testutil"
)

func setupService(t *testing.T) (*Service, []*models.Product) {
	t.Helper()
	repos, _ := testutil.SetupTestRepos(t)

	attar := testutil.SampleProduct()
	attar.ShopSlug = "fragrance"
	attar.Name = "Musk Attar"
	attar.Slug = "musk-attar"
	attar.Category = "attar"
	attar.Price = 2450

	soldOut := testutil.SampleProduct()
	soldOut.Slug = "sold-out"
	soldOut.Stock = 0

	products := testutil.SeedProducts(t, repos, testutil.SampleProduct(), attar, soldOut)
	return NewService(repos.Carts, repos.Products), products
}

func TestGuestCart(t *testing.T) {
	svc, products := setupService(t)
	ctx := context.Background()
	local := storage.NewMemoryStore()
	book := products[0]

	c, err := svc.AddItem(ctx, local, "", book.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, c.TotalItems())
	assert.Equal(t, "10.00", c.Subtotal().String())

	c, err = svc.AddItem(ctx, local, "", book.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, c.TotalItems())
	assert.Equal(t, "20.00", c.Subtotal().String())

	raw, ok, err := local.Get(ctx, storage.KeyCart)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"quantity":2`)

	loaded, err := svc.Load(ctx, local, "")
	require.NoError(t, err)
	assert.Equal(t, c.Items, loaded.Items)

	c, err = svc.UpdateQuantity(ctx, local, "", book.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, c.TotalItems())

	c, err = svc.RemoveItem(ctx, local, "", book.ID)
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	_, err = svc.UpdateQuantity(ctx, local, "", book.ID, 1)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestAddItem_UnknownAndOutOfStock(t *testing.T) {
	svc, products := setupService(t)
	ctx := context.Background()
	local := storage.NewMemoryStore()

	_, err := svc.AddItem(ctx, local, "", 9999, 1)
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = svc.AddItem(ctx, local, "", products[2].ID, 1)
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestGuestCart_LegacyKey(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	local := storage.NewMemoryStore()

	require.NoError(t, local.Set(ctx, storage.KeyCartLegacy,
		`[{"product_id":1,"name":"Riyad as-Salihin","price":"10.00","quantity":3}]`))

	c, err := svc.Load(ctx, local, "")
	require.NoError(t, err)
	assert.Equal(t, 3, c.TotalItems())
	assert.Equal(t, models.Money(3000), c.Subtotal())

	_, ok, _ := local.Get(ctx, storage.KeyCartLegacy)
	assert.False(t, ok, "legacy key is migrated")
	_, ok, _ = local.Get(ctx, storage.KeyCart)
	assert.True(t, ok)
}

func TestGuestCart_CorruptOrUnavailable(t *testing.T) {
	svc, products := setupService(t)
	ctx := context.Background()

	corrupt := storage.NewMemoryStore()
	require.NoError(t, corrupt.Set(ctx, storage.KeyCart, "{broken"))
	c, err := svc.Load(ctx, corrupt, "")
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	c, err = svc.AddItem(ctx, storage.Unavailable(), "", products[0].ID, 2)
	require.NoError(t, err, "unavailable storage degrades to an unsaved cart")
	assert.Equal(t, 2, c.TotalItems())
}

func TestUserCart(t *testing.T) {
	svc, products := setupService(t)
	ctx := context.Background()
	local := storage.NewMemoryStore()
	book, attar := products[0], products[1]

	_, err := svc.AddItem(ctx, local, "user-1", book.ID, 1)
	require.NoError(t, err)
	c, err := svc.AddItem(ctx, local, "user-1", attar.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, c.TotalItems())
	assert.Equal(t, "59.00", c.Subtotal().String())

	_, ok, _ := local.Get(ctx, storage.KeyCart)
	assert.False(t, ok, "user carts are not written to client storage")

	c, err = svc.UpdateQuantity(ctx, local, "user-1", attar.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, c.TotalItems())

	require.NoError(t, svc.Clear(ctx, local, "user-1"))
	c, err = svc.Load(ctx, local, "user-1")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestMergeGuestCart(t *testing.T) {
	svc, products := setupService(t)
	ctx := context.Background()
	local := storage.NewMemoryStore()
	book, attar := products[0], products[1]

	_, err := svc.AddItem(ctx, local, "user-1", book.ID, 1)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, local, "", book.ID, 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, local, "", attar.ID, 1)
	require.NoError(t, err)

	merged, err := svc.MergeGuestCart(ctx, local, "user-1")
	require.NoError(t, err)
	require.Len(t, merged.Items, 2)

	line, ok := merged.Item(book.ID)
	require.True(t, ok)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, 4, merged.TotalItems())

	guest, err := svc.Load(ctx, local, "")
	require.NoError(t, err)
	assert.Empty(t, guest.Items)

	_, err = svc.MergeGuestCart(ctx, local, "")
	assert.Error(t, err)
}
