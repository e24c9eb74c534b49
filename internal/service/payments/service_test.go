package payments_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tixsync/internal/clock"
	"github.com/kirinyoku/tixsync/internal/domain"
	"github.com/kirinyoku/tixsync/internal/pricefeed"
	"github.com/kirinyoku/tixsync/internal/repository/memory"
	postgresrepo "github.com/kirinyoku/tixsync/internal/repository/postgres"
	"github.com/kirinyoku/tixsync/internal/service/orders"
	"github.com/kirinyoku/tixsync/internal/service/payments"
	"github.com/kirinyoku/tixsync/internal/service/reservation"
	"github.com/kirinyoku/tixsync/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	pool     *pgxpool.Pool
	store    *postgresrepo.Store
	clock    *clock.Manual
	reserve  *reservation.Service
	orders   *orders.Service
	payments *payments.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pool := testutil.NewMigratedPool(t)
	store := postgresrepo.NewStore(pool)
	clk := clock.NewManual(time.Now().Truncate(time.Second))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ordersSvc := orders.New(store, nil, clk)

	return &fixture{
		pool:     pool,
		store:    store,
		clock:    clk,
		reserve:  reservation.New(store, memory.NewLocker(), nil, nil, clk, logger, reservation.Config{}),
		orders:   ordersSvc,
		payments: payments.New(store, pricefeed.DefaultStatic(), ordersSvc, clk, logger, payments.Config{}),
	}
}

// order reserves two 100.00 tickets for caller 1.
func (f *fixture) order(t *testing.T) (uuid.UUID, int64) {
	t.Helper()
	ctx := context.Background()

	eventID := testutil.InsertEvent(t, ctx, f.pool, "Concert "+uuid.NewString()[:8])
	tt := testutil.InsertTicketType(t, ctx, f.pool, eventID, "GA", "100.00", 10)

	orderID, err := f.reserve.Reserve(ctx, reservation.ReserveInput{CallerID: 1, TicketTypeID: tt, Quantity: 2})
	require.NoError(t, err)

	return orderID, tt
}

func TestCreateQuote_ReusesPerAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, _ := f.order(t)

	p, err := f.payments.CreateQuote(ctx, 1, orderID, "btc")
	require.NoError(t, err)
	assert.Equal(t, "BTC", p.Asset)
	assert.Equal(t, "TWD", p.BaseCurrency)
	assert.Equal(t, domain.PaymentPending, p.Status)
	assert.True(t, p.AmountCrypto.Equal(decimal.RequireFromString("0.00008")), p.AmountCrypto.String())
	assert.True(t, p.ExpiresAt.Equal(f.clock.Now().Add(15*time.Minute)))

	again, err := f.payments.CreateQuote(ctx, 1, orderID, "BTC")
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)

	eth, err := f.payments.CreateQuote(ctx, 1, orderID, "ETH")
	require.NoError(t, err)
	assert.NotEqual(t, p.ID, eth.ID)
	assert.Equal(t, "0.002222222222222223", eth.AmountCrypto.String())

	old, err := f.store.Payments().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentExpired, old.Status)
}

func TestCreateQuote_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, tt := f.order(t)

	_, err := f.payments.CreateQuote(ctx, 1, orderID, "DOGE")
	assert.ErrorIs(t, err, pricefeed.ErrUnsupportedAsset)

	_, err = f.payments.CreateQuote(ctx, 2, orderID, "BTC")
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	_, err = f.payments.CreateQuote(ctx, 1, uuid.New(), "BTC")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	require.NoError(t, f.reserve.RemoveItem(ctx, 1, orderID, tt))

	_, err = f.payments.CreateQuote(ctx, 1, orderID, "BTC")
	assert.ErrorIs(t, err, domain.ErrEmptyOrder)
}

func TestBasketChange_VoidsPendingQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, tt := f.order(t)

	stale, err := f.payments.CreateQuote(ctx, 1, orderID, "BTC")
	require.NoError(t, err)
	assert.True(t, stale.AmountCrypto.Equal(decimal.RequireFromString("0.00008")))

	_, err = f.reserve.Reserve(ctx, reservation.ReserveInput{CallerID: 1, OrderID: orderID, TicketTypeID: tt, Quantity: 2})
	require.NoError(t, err)

	got, err := f.store.Payments().Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentExpired, got.Status)

	_, err = f.payments.ConfirmSettlement(ctx, 1, stale.ID, "tx-short")
	assert.ErrorIs(t, err, domain.ErrPaymentNotPending)

	o, err := f.store.Orders().Get(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPendingPayment, o.Status)

	fresh, err := f.payments.CreateQuote(ctx, 1, orderID, "BTC")
	require.NoError(t, err)
	assert.NotEqual(t, stale.ID, fresh.ID)
	assert.True(t, fresh.AmountCrypto.Equal(decimal.RequireFromString("0.00016")), fresh.AmountCrypto.String())

	require.NoError(t, f.reserve.RemoveItem(ctx, 1, orderID, tt))

	got, err = f.store.Payments().Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentExpired, got.Status)
}

func TestConfirmSettlement_ConfirmsOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, _ := f.order(t)

	err := f.orders.Confirm(ctx, 1, orderID)
	require.ErrorIs(t, err, domain.ErrNoConfirmedPayment)

	p, err := f.payments.CreateQuote(ctx, 1, orderID, "BTC")
	require.NoError(t, err)

	_, err = f.payments.ConfirmSettlement(ctx, 1, p.ID, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidProof)

	_, err = f.payments.ConfirmSettlement(ctx, 2, p.ID, "tx-1")
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	confirmed, err := f.payments.ConfirmSettlement(ctx, 1, p.ID, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.SettlementProof)
	assert.Equal(t, "tx-1", *confirmed.SettlementProof)

	o, err := f.store.Orders().Get(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, o.Status)

	_, err = f.payments.ConfirmSettlement(ctx, 1, p.ID, "tx-1")
	assert.ErrorIs(t, err, domain.ErrPaymentAlreadyConfirmed)

	assert.ErrorIs(t, f.orders.Confirm(ctx, 1, orderID), domain.ErrOrderAlreadyConfirmed)

	got, err := f.payments.Get(ctx, 1, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentConfirmed, got.Status)

	_, err = f.payments.Get(ctx, 1, uuid.New())
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestConfirmSettlement_ProofUsedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, _ := f.order(t)
	second, _ := f.order(t)

	p1, err := f.payments.CreateQuote(ctx, 1, first, "USDT")
	require.NoError(t, err)
	p2, err := f.payments.CreateQuote(ctx, 1, second, "USDT")
	require.NoError(t, err)

	_, err = f.payments.ConfirmSettlement(ctx, 1, p1.ID, "0xabc")
	require.NoError(t, err)

	_, err = f.payments.ConfirmSettlement(ctx, 1, p2.ID, "0xabc")
	assert.ErrorIs(t, err, domain.ErrProofAlreadyUsed)

	still, err := f.store.Payments().Get(ctx, p2.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, still.Status)
}

func TestConfirmSettlement_LapsedQuoteIsExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, _ := f.order(t)

	p, err := f.payments.CreateQuote(ctx, 1, orderID, "BTC")
	require.NoError(t, err)

	f.clock.Advance(16 * time.Minute)

	_, err = f.payments.ConfirmSettlement(ctx, 1, p.ID, "tx-late")
	assert.ErrorIs(t, err, domain.ErrPaymentExpired)

	got, err := f.store.Payments().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentExpired, got.Status)

	_, err = f.payments.ConfirmSettlement(ctx, 1, p.ID, "tx-late")
	assert.ErrorIs(t, err, domain.ErrPaymentNotPending)

	o, err := f.store.Orders().Get(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPendingPayment, o.Status)
}

func TestConfirmSettlement_CancelledOrderFailsPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, _ := f.order(t)

	p, err := f.payments.CreateQuote(ctx, 1, orderID, "ETH")
	require.NoError(t, err)

	require.NoError(t, f.reserve.Cancel(ctx, 1, orderID))

	_, err = f.payments.ConfirmSettlement(ctx, 1, p.ID, "tx-2")
	assert.ErrorIs(t, err, domain.ErrOrderNotPending)

	got, err := f.store.Payments().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, got.Status)
	assert.Nil(t, got.SettlementProof)
}

func TestPreviewQuote(t *testing.T) {
	f := newFixture(t)

	q, err := f.payments.PreviewQuote(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, "ETH", q.Asset)
	assert.Equal(t, "TWD", q.BaseCurrency)
	assert.True(t, q.Rate.Equal(decimal.NewFromInt(90000)))
}

// connFeed records how many pool connections were checked out when asked for a rate.
type connFeed struct {
	pricefeed.Feed
	pool     *pgxpool.Pool
	acquired int32
}

func (f *connFeed) Quote(ctx context.Context, asset string) (decimal.Decimal, error) {
	f.acquired = f.pool.Stat().AcquiredConns()
	return f.Feed.Quote(ctx, asset)
}

func TestCreateQuote_RateFetchedOutsideTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID, _ := f.order(t)

	feed := &connFeed{Feed: pricefeed.DefaultStatic(), pool: f.pool}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := payments.New(f.store, feed, f.orders, f.clock, logger, payments.Config{})

	idle := f.pool.Stat().AcquiredConns()

	_, err := svc.CreateQuote(ctx, 1, orderID, "USDT")
	require.NoError(t, err)
	assert.Equal(t, idle, feed.acquired)
}
