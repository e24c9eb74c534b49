package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Deletes KEYS[1] only while it still holds ARGV[1].
const luaCompareAndDelete = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`

var unlockScript = redis.NewScript(luaCompareAndDelete)

// Locker is a best-effort mutual exclusion over Redis keys. A holder is
// identified by a random token so only it can release the key.
type Locker struct {
	rdb      *redis.Client
	logger   *slog.Logger
	newToken func() string
}

func NewLocker(rdb *redis.Client, logger *slog.Logger) *Locker {
	return &Locker{
		rdb:      rdb,
		logger:   logger,
		newToken: uuid.NewString,
	}
}

// Acquire sets key with a fresh token if it is absent. Any store error is
// reported as not acquired.
//
// Returns:
//   - string: owner token, empty when not acquired.
//   - bool: whether the lock is held.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool) {
	token := l.newToken()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		l.logger.Warn("lock acquire failed", slog.String("key", key), slog.Any("error", err))
		return "", false
	}

	if !ok {
		return "", false
	}

	return token, true
}

// Release deletes key if it is still held by token. It reports false when
// the key expired, was taken over, or the store failed.
func (l *Locker) Release(ctx context.Context, key, token string) bool {
	if token == "" {
		return false
	}

	n, err := unlockScript.Run(ctx, l.rdb, []string{key}, token).Int64()
	if err != nil {
		l.logger.Warn("lock release failed", slog.String("key", key), slog.Any("error", err))
		return false
	}

	return n == 1
}
