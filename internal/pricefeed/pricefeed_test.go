package pricefeed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/kirinyoku/tixsync/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeRegistry struct {
	mu    sync.Mutex
	rates map[string]decimal.Decimal
	err   error
}

func (f *fakeRegistry) Get(_ context.Context, asset string) (decimal.Decimal, bool, error) {
	if f.err != nil {
		return decimal.Zero, false, f.err
	}
	r, ok := f.rates[asset]
	return r, ok, nil
}

func (f *fakeRegistry) PutAll(_ context.Context, rates map[string]decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rates == nil {
		f.rates = map[string]decimal.Decimal{}
	}
	for k, v := range rates {
		f.rates[k] = v
	}
	return nil
}

func TestStatic_DefaultTable(t *testing.T) {
	s := DefaultStatic()
	assert.Equal(t, "TWD", s.BaseCurrency())

	r, err := s.Quote(context.Background(), "USDT")
	require.NoError(t, err)
	assert.True(t, r.Equal(decimal.RequireFromString("32.5")))

	_, err = s.Quote(context.Background(), "DOGE")
	assert.ErrorIs(t, err, ErrUnsupportedAsset)
}

func TestDynamic_PrefersRegistry(t *testing.T) {
	reg := &fakeRegistry{rates: map[string]decimal.Decimal{"ETH": decimal.NewFromInt(95000)}}
	d := NewDynamic(reg, DefaultStatic(), discard)

	r, err := d.Quote(context.Background(), " eth ")
	require.NoError(t, err)
	assert.True(t, r.Equal(decimal.NewFromInt(95000)))

	r, err = d.Quote(context.Background(), "btc")
	require.NoError(t, err)
	assert.True(t, r.Equal(decimal.NewFromInt(2500000)), "falls back to static table")
}

func TestDynamic_RegistryErrorFallsBack(t *testing.T) {
	reg := &fakeRegistry{err: errors.New("redis down")}
	d := NewDynamic(reg, DefaultStatic(), discard)

	r, err := d.Quote(context.Background(), "ETH")
	require.NoError(t, err)
	assert.True(t, r.Equal(decimal.NewFromInt(90000)))
}

func TestDynamic_Rejects(t *testing.T) {
	reg := &fakeRegistry{rates: map[string]decimal.Decimal{"ZERO": decimal.Zero}}
	d := NewDynamic(reg, DefaultStatic(), discard)
	ctx := context.Background()

	_, err := d.Quote(ctx, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidAsset)

	_, err = d.Quote(ctx, "DOGE")
	assert.ErrorIs(t, err, ErrUnsupportedAsset)

	_, err = d.Quote(ctx, "ZERO")
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestPoller_Pull(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"bitcoin":{"twd":3100000.5},"ethereum":{"twd":0},"tether":{"usd":1}}`)
	}))
	defer srv.Close()

	reg := &fakeRegistry{}
	p := NewPoller(reg, PollerConfig{
		Endpoint: srv.URL,
		Base:     "TWD",
		Assets:   []string{"btc", "ETH", "USDT", "DOGE"},
	}, discard)

	n, err := p.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, gotQuery, "vs_currencies=twd")
	assert.Contains(t, gotQuery, "ids=bitcoin%2Cethereum%2Ctether")

	assert.True(t, reg.rates["BTC"].Equal(decimal.RequireFromString("3100000.5")))
	_, ok := reg.rates["ETH"]
	assert.False(t, ok, "non-positive price is skipped")
}

func TestPoller_PullBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewPoller(&fakeRegistry{}, PollerConfig{Endpoint: srv.URL}, discard)

	_, err := p.Pull(context.Background())
	assert.Error(t, err)
}
