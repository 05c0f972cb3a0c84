package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cheertaboi/jewelry-storefront/internal/models"
)

func ring(stock int) models.CartLineItem {
	return models.CartLineItem{
		ID:            "ring-1",
		Title:         "Gold Ring",
		UnitPrice:     decimal.NewFromInt(1000),
		StockQuantity: stock,
	}
}

func TestClampQuantity(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		stock     int
		want      int
		reason    string
	}{
		{"within bounds", 3, 5, 3, ""},
		{"above stock", 15, 5, 5, ReasonExceedsStock},
		{"above limit", 15, 50, 10, ReasonExceedsLimit},
		{"zero", 0, 5, 1, ReasonBelowMinimum},
		{"negative", -2, 5, 1, ReasonBelowMinimum},
		{"stock equals limit", 11, 10, 10, ReasonExceedsLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := ClampQuantity(tt.requested, tt.stock)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestAddClampsToStock(t *testing.T) {
	c := New()
	adj, err := c.Add(ring(5), 15)
	require.NoError(t, err)
	require.NotNil(t, adj)
	assert.Equal(t, 5, adj.Applied)
	assert.Equal(t, ReasonExceedsStock, adj.Reason)
	assert.Equal(t, "Only 5 left in stock; quantity set to 5", adj.Message())

	item, ok := c.Find("ring-1")
	require.True(t, ok)
	assert.Equal(t, 5, item.Quantity)
}

func TestAddMergesLines(t *testing.T) {
	c := New()
	_, err := c.Add(ring(5), 2)
	require.NoError(t, err)

	updated := ring(4)
	updated.UnitPrice = decimal.NewFromInt(1100)
	adj, err := c.Add(updated, 3)
	require.NoError(t, err)
	require.NotNil(t, adj)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 4, c.Items[0].Quantity)
	assert.True(t, c.Items[0].UnitPrice.Equal(decimal.NewFromInt(1100)))
}

func TestAddOutOfStock(t *testing.T) {
	c := New()
	_, err := c.Add(ring(0), 1)
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.True(t, c.IsEmpty())
}

func TestDecrementStopsAtOne(t *testing.T) {
	c := New()
	_, err := c.Add(ring(5), 1)
	require.NoError(t, err)

	adj, err := c.Decrement("ring-1")
	require.NoError(t, err)
	require.NotNil(t, adj)
	assert.Equal(t, ReasonBelowMinimum, adj.Reason)
	assert.Equal(t, 1, c.Items[0].Quantity)
}

func TestIncrementAtStock(t *testing.T) {
	c := New()
	_, err := c.Add(ring(2), 2)
	require.NoError(t, err)

	adj, err := c.Increment("ring-1")
	require.NoError(t, err)
	require.NotNil(t, adj)
	assert.Equal(t, 2, c.Items[0].Quantity)
}

func TestUnknownItem(t *testing.T) {
	c := New()
	_, err := c.SetQuantity("missing", 2)
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.ErrorIs(t, c.Remove("missing"), ErrItemNotFound)
}

func TestUpdateStock(t *testing.T) {
	c := New()
	_, err := c.Add(ring(5), 4)
	require.NoError(t, err)

	adj, err := c.UpdateStock("ring-1", 2)
	require.NoError(t, err)
	require.NotNil(t, adj)
	assert.Equal(t, 2, c.Items[0].Quantity)

	adj, err = c.UpdateStock("ring-1", 0)
	require.NoError(t, err)
	require.NotNil(t, adj)
	assert.Equal(t, ReasonOutOfStock, adj.Reason)
	assert.True(t, c.IsEmpty())
}

func TestApplyPromoReplaces(t *testing.T) {
	c := New()
	assert.Nil(t, c.ApplyPromo(models.PromoCode{Code: "save10", DiscountPercentage: decimal.NewFromInt(10)}))

	prev := c.ApplyPromo(models.PromoCode{Code: "FESTIVE20", DiscountPercentage: decimal.NewFromInt(20)})
	require.NotNil(t, prev)
	assert.Equal(t, "SAVE10", prev.Code)
	assert.True(t, c.HasPromo("festive20"))
	assert.True(t, c.DiscountPercent().Equal(decimal.NewFromInt(20)))

	c.RemovePromo()
	assert.True(t, c.DiscountPercent().IsZero())
}

func TestClear(t *testing.T) {
	c := New()
	_, err := c.Add(ring(5), 1)
	require.NoError(t, err)
	c.ApplyPromo(models.PromoCode{Code: "SAVE10", DiscountPercentage: decimal.NewFromInt(10)})

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.Nil(t, c.Promo)
	assert.NotNil(t, c.Items)
}
