package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	token     string
	expiresAt time.Time
}

// Locker is an in-process lock table with the same contract as the Redis
// locker. It only excludes callers within one process.
type Locker struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewLocker() *Locker {
	return &Locker{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (l *Locker) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.entries[key]; ok && e.expiresAt.After(now) {
		return "", false
	}

	token := uuid.NewString()
	l.entries[key] = entry{token: token, expiresAt: now.Add(ttl)}

	return token, true
}

func (l *Locker) Release(_ context.Context, key, token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || e.token != token {
		return false
	}

	delete(l.entries, key)
	return e.expiresAt.After(l.now())
}

// Purge drops expired entries and returns how many were removed.
func (l *Locker) Purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for k, e := range l.entries {
		if !e.expiresAt.After(now) {
			delete(l.entries, k)
			n++
		}
	}

	return n
}

// RunPurger calls Purge every interval until ctx is done.
func (l *Locker) RunPurger(ctx context.Context, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := l.Purge(); n > 0 {
				logger.Debug("purged expired locks", slog.Int("count", n))
			}
		}
	}
}
