package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naazbooks/storefront/internal/models"
)

func TestAddItem_MergesSameProduct(t *testing.T) {
	var c Cart

	price, err := models.ParseMoney("10.00")
	require.NoError(t, err)
	item := models.CartItem{ProductID: 1, Price: price, Quantity: 1}

	require.NoError(t, c.AddItem(item))
	assert.Equal(t, 1, c.TotalItems())
	assert.Equal(t, "10.00", c.Subtotal().String())

	require.NoError(t, c.AddItem(item))
	assert.Equal(t, 2, c.TotalItems())
	assert.Equal(t, "20.00", c.Subtotal().String())
	assert.Len(t, c.Items, 1, "same product merges into one line")
}

func TestAddItem_Validation(t *testing.T) {
	tests := []struct {
		name string
		item models.CartItem
	}{
		{"zero product", models.CartItem{ProductID: 0, Price: 100, Quantity: 1}},
		{"negative price", models.CartItem{ProductID: 1, Price: -1, Quantity: 1}},
		{"negative quantity", models.CartItem{ProductID: 1, Price: 100, Quantity: -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Cart
			err := c.AddItem(tt.item)
			assert.ErrorIs(t, err, ErrInvalidItem)
			assert.Empty(t, c.Items)
		})
	}
}

func TestAddItem_DefaultsAndCap(t *testing.T) {
	var c Cart

	require.NoError(t, c.AddItem(models.CartItem{ProductID: 1, Price: 250}))
	assert.Equal(t, 1, c.TotalItems(), "zero quantity adds one unit")

	require.NoError(t, c.AddItem(models.CartItem{ProductID: 1, Price: 300, Quantity: 500, Name: "Tasbih"}))
	line, ok := c.Item(1)
	require.True(t, ok)
	assert.Equal(t, MaxQuantity, line.Quantity)
	assert.Equal(t, models.Money(300), line.Price, "newer price wins")
	assert.Equal(t, "Tasbih", line.Name)
}

func TestUpdateQuantity(t *testing.T) {
	var c Cart
	require.NoError(t, c.AddItem(models.CartItem{ProductID: 1, Price: 100, Quantity: 1}))
	require.NoError(t, c.AddItem(models.CartItem{ProductID: 2, Price: 550, Quantity: 2}))

	require.NoError(t, c.UpdateQuantity(1, 4))
	assert.Equal(t, 6, c.TotalItems())
	assert.Equal(t, models.Money(1500), c.Subtotal())

	require.NoError(t, c.UpdateQuantity(2, 0))
	assert.Len(t, c.Items, 1)

	require.NoError(t, c.UpdateQuantity(1, 1000))
	line, _ := c.Item(1)
	assert.Equal(t, MaxQuantity, line.Quantity)

	assert.ErrorIs(t, c.UpdateQuantity(42, 1), ErrItemNotFound)
}

func TestRemoveAndClear(t *testing.T) {
	var c Cart
	require.NoError(t, c.AddItem(models.CartItem{ProductID: 1, Price: 100, Quantity: 1}))
	require.NoError(t, c.AddItem(models.CartItem{ProductID: 2, Price: 100, Quantity: 1}))
	require.NoError(t, c.AddItem(models.CartItem{ProductID: 3, Price: 100, Quantity: 1}))

	assert.True(t, c.RemoveItem(2))
	assert.False(t, c.RemoveItem(2))
	require.Len(t, c.Items, 2)
	assert.Equal(t, int64(1), c.Items[0].ProductID)
	assert.Equal(t, int64(3), c.Items[1].ProductID)

	c.Clear()
	assert.Zero(t, c.TotalItems())
	assert.Zero(t, c.Subtotal())
}

func TestResponse(t *testing.T) {
	var c Cart
	resp := c.Response()
	assert.NotNil(t, resp.Items)
	assert.Zero(t, resp.TotalItems)

	require.NoError(t, c.AddItem(models.CartItem{ProductID: 7, Price: 1999, Quantity: 3}))
	resp = c.Response()
	assert.Equal(t, 3, resp.TotalItems)
	assert.Equal(t, "59.97", resp.Subtotal.String())
}
