package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_AddItemMergesPerTicketType(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	o := NewOrder(uuid.New(), 1, now)

	o.AddItem(10, 2, decimal.NewFromInt(1000))
	o.AddItem(20, 1, decimal.NewFromInt(500))
	d := o.AddItem(10, 1, decimal.NewFromInt(1000))

	require.Len(t, o.Items, 2)
	assert.Equal(t, 3, d.Quantity)
	assert.True(t, d.Cost.Equal(decimal.NewFromInt(3000)), d.Cost.String())
	assert.True(t, o.TotalCost.Equal(decimal.NewFromInt(3500)), o.TotalCost.String())
}

func TestOrder_AddItemRefreshesUnitPrice(t *testing.T) {
	o := NewOrder(uuid.New(), 1, time.Now())
	o.AddItem(10, 1, decimal.NewFromInt(100))
	d := o.AddItem(10, 1, decimal.NewFromInt(120))

	assert.True(t, d.UnitPrice.Equal(decimal.NewFromInt(120)))
	assert.True(t, o.TotalCost.Equal(decimal.NewFromInt(240)))
}

func TestOrder_RemoveItem(t *testing.T) {
	o := NewOrder(uuid.New(), 1, time.Now())
	o.AddItem(10, 2, decimal.NewFromInt(1000))
	o.AddItem(20, 1, decimal.NewFromInt(500))

	removed, err := o.RemoveItem(10)
	require.NoError(t, err)
	assert.Equal(t, 2, removed.Quantity)
	assert.True(t, o.TotalCost.Equal(decimal.NewFromInt(500)))

	_, err = o.RemoveItem(10)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestOrder_CheckMutable(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Minute)

	tests := []struct {
		name    string
		status  OrderStatus
		expires *time.Time
		want    error
	}{
		{name: "pending no window", status: OrderPendingPayment},
		{name: "pending in window", status: OrderPendingPayment, expires: &future},
		{name: "pending elapsed", status: OrderPendingPayment, expires: &past, want: ErrOrderExpired},
		{name: "confirmed", status: OrderConfirmed, expires: &future, want: ErrOrderAlreadyConfirmed},
		{name: "cancelled", status: OrderCancelled, want: ErrOrderNotPending},
		{name: "expired", status: OrderExpired, want: ErrOrderNotPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{Status: tt.status, ExpiresAt: tt.expires}
			err := o.CheckMutable(now)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOrder_ExtendWindowAndOwner(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	o := NewOrder(uuid.New(), 42, now)
	o.ExtendWindow(now, 30*time.Minute)

	require.NotNil(t, o.ExpiresAt)
	assert.Equal(t, now.Add(30*time.Minute), *o.ExpiresAt)
	assert.False(t, o.IsExpired(now.Add(30*time.Minute)))
	assert.True(t, o.IsExpired(now.Add(31*time.Minute)))

	assert.NoError(t, o.CheckOwner(42))
	assert.ErrorIs(t, o.CheckOwner(7), ErrNotOwner)
}

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus("EXPIRED")
	require.NoError(t, err)
	assert.Equal(t, OrderExpired, st)

	_, err = ParseOrderStatus("pending")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
