// Package pricefeed quotes crypto assets in a fiat base currency.
package pricefeed

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrUnsupportedAsset = errors.New("unsupported asset")
	ErrInvalidRate      = errors.New("rate must be positive")
)

// Feed returns how many units of BaseCurrency one unit of asset is worth.
type Feed interface {
	Quote(ctx context.Context, asset string) (decimal.Decimal, error)
	BaseCurrency() string
}

// Static serves a fixed table of rates.
type Static struct {
	base  string
	rates map[string]decimal.Decimal
}

func NewStatic(base string, rates map[string]decimal.Decimal) *Static {
	return &Static{base: base, rates: rates}
}

// DefaultStatic is the built-in TWD table used when no external quote exists.
func DefaultStatic() *Static {
	return NewStatic("TWD", map[string]decimal.Decimal{
		"BTC":  decimal.RequireFromString("2500000"),
		"ETH":  decimal.RequireFromString("90000"),
		"USDT": decimal.RequireFromString("32.5"),
	})
}

func (s *Static) Quote(_ context.Context, asset string) (decimal.Decimal, error) {
	r, ok := s.rates[asset]
	if !ok {
		return decimal.Zero, ErrUnsupportedAsset
	}
	return r, nil
}

func (s *Static) BaseCurrency() string { return s.base }
