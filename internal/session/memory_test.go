package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cheertaboi/jewelry-storefront/internal/checkout"
	"github.com/Cheertaboi/jewelry-storefront/internal/models"
)

func ring(stock int) models.CartLineItem {
	return models.CartLineItem{ID: "ring-1", Title: "Gold Ring", UnitPrice: decimal.NewFromInt(1000), StockQuantity: stock}
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	_, err := s.Load(context.Background(), "guest:1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUpdateRoundTrip(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	_, err := s.Update(ctx, "user:1", func(st *State) error {
		st.UserID = "1"
		_, err := st.Cart.Add(ring(5), 2)
		st.Checkout = &checkout.Session{ID: "user:1", Step: checkout.StepBillingPayment,
			Payment: models.PaymentChoice{PaymentSelection: models.UPI{ID: "asha@okbank"}}}
		return err
	})
	require.NoError(t, err)

	got, err := s.Load(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, "1", got.UserID)
	require.Len(t, got.Cart.Items, 1)
	assert.Equal(t, 2, got.Cart.Items[0].Quantity)
	require.NotNil(t, got.Checkout)
	assert.Equal(t, checkout.StepBillingPayment, got.Checkout.Step)
	assert.Equal(t, models.UPI{ID: "asha@okbank"}, got.Checkout.Payment.PaymentSelection)
}

func TestMemoryStoreLoadIsASnapshot(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()
	_, err := s.Update(ctx, "g", func(st *State) error {
		_, err := st.Cart.Add(ring(5), 1)
		return err
	})
	require.NoError(t, err)

	got, err := s.Load(ctx, "g")
	require.NoError(t, err)
	got.Cart.Clear()

	again, err := s.Load(ctx, "g")
	require.NoError(t, err)
	assert.Len(t, again.Cart.Items, 1)
}

func TestMemoryStoreUpdateKeepsStateOnError(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	boom := errors.New("order failed")

	st, err := s.Update(context.Background(), "g", func(st *State) error {
		st.GuestID = "g"
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, st)

	got, err := s.Load(context.Background(), "g")
	require.NoError(t, err)
	assert.Equal(t, "g", got.GuestID)
}

func TestMemoryStoreSerializesUpdates(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()
	_, err := s.Update(ctx, "g", func(st *State) error {
		_, err := st.Cart.Add(ring(10), 1)
		return err
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 9; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Update(ctx, "g", func(st *State) error {
				_, err := st.Cart.Increment("ring-1")
				return err
			})
		}()
	}
	wg.Wait()

	got, err := s.Load(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Cart.Items[0].Quantity)
	assert.Empty(t, s.locks)
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Hour)
	s.clock = func() time.Time { return now }
	ctx := context.Background()

	_, err := s.Update(ctx, "g", func(st *State) error { return nil })
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = s.Load(ctx, "g")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
