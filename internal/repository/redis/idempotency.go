package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idemNS      = ns + ":idem"
	idemLock    = "LOCK"
	idemResultP = "RES:"
)

// KeyIdem scopes a client Idempotency-Key to an operation and caller.
func KeyIdem(scope string, callerID int64, idemKey string) string {
	return fmt.Sprintf("%s:%s:%d:%s", idemNS, scope, callerID, idemKey)
}

// IdempotencyStore remembers the response of a request keyed by the client's
// Idempotency-Key. A key is either LOCK (in flight) or RES:<status>:<json>.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

type StoredResponse struct {
	Status int
	Body   string
}

func (s *IdempotencyStore) AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, idemLock, lockTTL).Result()
}

func (s *IdempotencyStore) SaveResult(ctx context.Context, key string, status int, jsonPayload string) error {
	val := fmt.Sprintf("%s%d:%s", idemResultP, status, jsonPayload)
	return s.rdb.Set(ctx, key, val, s.ttl).Err()
}

func (s *IdempotencyStore) GetResult(ctx context.Context, key string) (StoredResponse, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return StoredResponse{}, false, nil
	}
	if err != nil {
		return StoredResponse{}, false, err
	}

	rest, ok := strings.CutPrefix(v, idemResultP)
	if !ok {
		return StoredResponse{}, false, nil
	}

	code, body, ok := strings.Cut(rest, ":")
	if !ok {
		return StoredResponse{}, false, nil
	}

	var status int
	if _, err := fmt.Sscan(code, &status); err != nil {
		return StoredResponse{}, false, nil
	}

	return StoredResponse{Status: status, Body: body}, true, nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
