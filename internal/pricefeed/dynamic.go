package pricefeed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirinyoku/tixsync/internal/domain"
	"github.com/shopspring/decimal"
)

// Registry is a store of externally supplied rates.
type Registry interface {
	Get(ctx context.Context, asset string) (decimal.Decimal, bool, error)
}

// Dynamic prefers the registry and falls back to another feed when the
// registry has no rate or cannot be reached.
type Dynamic struct {
	registry Registry
	fallback Feed
	logger   *slog.Logger
}

func NewDynamic(registry Registry, fallback Feed, logger *slog.Logger) *Dynamic {
	return &Dynamic{registry: registry, fallback: fallback, logger: logger}
}

func (d *Dynamic) BaseCurrency() string { return d.fallback.BaseCurrency() }

// Quote normalizes asset and returns a strictly positive rate.
//
// Returns:
//   - error: domain.ErrInvalidAsset for a blank asset.
//   - error: ErrUnsupportedAsset when neither source knows the asset.
//   - error: ErrInvalidRate when the source rate is zero or negative.
func (d *Dynamic) Quote(ctx context.Context, asset string) (decimal.Decimal, error) {
	const op = "pricefeed.Dynamic.Quote"

	a, err := domain.NormalizeAsset(asset)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s:%w", op, err)
	}

	rate, ok, err := d.registry.Get(ctx, a)
	if err != nil {
		d.logger.Warn("quote registry unavailable, using fallback",
			slog.String("asset", a), slog.Any("error", err))
	}

	if err != nil || !ok {
		rate, err = d.fallback.Quote(ctx, a)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: %s:%w", op, a, err)
		}
	}

	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s: %s:%w", op, a, ErrInvalidRate)
	}

	return rate, nil
}
