package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// QuoteStore keeps externally supplied asset rates in one hash per base
// currency, field = asset, value = decimal string.
type QuoteStore struct {
	rdb  *redis.Client
	base string
	key  string
}

func NewQuoteStore(rdb *redis.Client, baseCurrency string) *QuoteStore {
	base := strings.ToUpper(baseCurrency)
	return &QuoteStore{rdb: rdb, base: base, key: KeyQuotes(base)}
}

func (s *QuoteStore) BaseCurrency() string { return s.base }

func (s *QuoteStore) Put(ctx context.Context, asset string, rate decimal.Decimal) error {
	const op = "redis.QuoteStore.Put"

	if err := s.rdb.HSet(ctx, s.key, strings.ToUpper(asset), rate.String()).Err(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *QuoteStore) PutAll(ctx context.Context, rates map[string]decimal.Decimal) error {
	const op = "redis.QuoteStore.PutAll"

	if len(rates) == 0 {
		return nil
	}

	values := make(map[string]any, len(rates))
	for a, r := range rates {
		values[strings.ToUpper(a)] = r.String()
	}

	if err := s.rdb.HSet(ctx, s.key, values).Err(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Get returns the stored rate, ok=false when none is stored.
func (s *QuoteStore) Get(ctx context.Context, asset string) (decimal.Decimal, bool, error) {
	const op = "redis.QuoteStore.Get"

	v, err := s.rdb.HGet(ctx, s.key, strings.ToUpper(asset)).Result()
	if err == redis.Nil {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("%s:%w", op, err)
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("%s: bad rate %q:%w", op, v, err)
	}

	return d, true, nil
}

func (s *QuoteStore) All(ctx context.Context) (map[string]decimal.Decimal, error) {
	const op = "redis.QuoteStore.All"

	m, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	out := make(map[string]decimal.Decimal, len(m))
	for a, v := range m {
		d, err := decimal.NewFromString(v)
		if err != nil {
			continue
		}
		out[a] = d
	}

	return out, nil
}

// Delete removes the asset and reports whether it was present.
func (s *QuoteStore) Delete(ctx context.Context, asset string) (bool, error) {
	const op = "redis.QuoteStore.Delete"

	n, err := s.rdb.HDel(ctx, s.key, strings.ToUpper(asset)).Result()
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	return n > 0, nil
}
