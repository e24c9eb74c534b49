package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketType_Decrease(t *testing.T) {
	tests := []struct {
		name      string
		quota     int
		n         int
		wantErr   error
		wantQuota int
	}{
		{name: "one", quota: 10, n: 1, wantQuota: 9},
		{name: "upper bound exclusive minus one", quota: 10, n: 3, wantQuota: 7},
		{name: "exact remaining", quota: 2, n: 2, wantQuota: 0},
		{name: "zero", quota: 10, n: 0, wantErr: ErrInvalidAmount, wantQuota: 10},
		{name: "negative", quota: 10, n: -1, wantErr: ErrInvalidAmount, wantQuota: 10},
		{name: "at ceiling", quota: 10, n: 4, wantErr: ErrInvalidAmount, wantQuota: 10},
		{name: "insufficient", quota: 2, n: 3, wantErr: ErrInsufficientQuota, wantQuota: 2},
		{name: "empty", quota: 0, n: 1, wantErr: ErrInsufficientQuota, wantQuota: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := &TicketType{Quota: tt.quota}
			err := tk.Decrease(tt.n, DefaultLedgerLimits)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantQuota, tk.Quota)
		})
	}
}

func TestTicketType_Increase(t *testing.T) {
	tk := &TicketType{Quota: 5}
	require.NoError(t, tk.Increase(4000, DefaultLedgerLimits))
	assert.Equal(t, 4005, tk.Quota)

	assert.ErrorIs(t, tk.Increase(0, DefaultLedgerLimits), ErrInvalidAmount)
	assert.ErrorIs(t, tk.Increase(4001, DefaultLedgerLimits), ErrInvalidAmount)
	assert.Equal(t, 4005, tk.Quota)
}

func TestTicketType_IncreaseOverflow(t *testing.T) {
	tk := &TicketType{Quota: math.MaxInt32 - 2}
	assert.ErrorIs(t, tk.Increase(3, DefaultLedgerLimits), ErrQuotaOverflow)
	assert.Equal(t, math.MaxInt32-2, tk.Quota)

	require.NoError(t, tk.Increase(2, DefaultLedgerLimits))
	assert.Equal(t, math.MaxInt32, tk.Quota)
}

func TestTicketType_CustomCeiling(t *testing.T) {
	limits := LedgerLimits{MaxDecrease: 11, MaxIncrease: 10}
	tk := &TicketType{Quota: 20}

	require.NoError(t, tk.Decrease(10, limits))
	assert.ErrorIs(t, tk.Decrease(11, limits), ErrInvalidAmount)
	assert.ErrorIs(t, tk.Increase(11, limits), ErrInvalidAmount)
}

func TestTicketType_Availability(t *testing.T) {
	tk := &TicketType{ID: 7, EventID: 3, Name: "VIP", Price: decimal.NewFromInt(2000), Quota: 12}
	a := tk.Availability()
	assert.Equal(t, int64(7), a.TicketTypeID)
	assert.Equal(t, 12, a.Remaining)
	assert.True(t, a.Price.Equal(decimal.NewFromInt(2000)))
}
