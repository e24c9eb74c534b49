package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_AcquireRelease(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	tok, ok := l.Acquire(ctx, "seat:1", time.Minute)
	require.True(t, ok)
	require.NotEmpty(t, tok)

	_, ok = l.Acquire(ctx, "seat:1", time.Minute)
	assert.False(t, ok, "second acquire must fail while held")

	_, ok = l.Acquire(ctx, "seat:2", time.Minute)
	assert.True(t, ok, "other keys are independent")

	assert.False(t, l.Release(ctx, "seat:1", "someone-else"))
	assert.True(t, l.Release(ctx, "seat:1", tok))

	_, ok = l.Acquire(ctx, "seat:1", time.Minute)
	assert.True(t, ok)
}

func TestLocker_ExpiredEntryCanBeTakenOver(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocker()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	old, ok := l.Acquire(ctx, "seat:1", 5*time.Second)
	require.True(t, ok)

	now = now.Add(6 * time.Second)

	fresh, ok := l.Acquire(ctx, "seat:1", 5*time.Second)
	require.True(t, ok)
	assert.NotEqual(t, old, fresh)

	assert.False(t, l.Release(ctx, "seat:1", old), "stale holder must not release the new holder")
	assert.True(t, l.Release(ctx, "seat:1", fresh))
}

func TestLocker_Purge(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocker()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = l.Acquire(ctx, "a", time.Second)
	_, _ = l.Acquire(ctx, "b", time.Minute)

	now = now.Add(2 * time.Second)
	assert.Equal(t, 1, l.Purge())
	assert.Len(t, l.entries, 1)
}

func TestLocker_MutualExclusion(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		holders atomic.Int32
		wins    atomic.Int32
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, ok := l.Acquire(ctx, "seat:9", time.Minute)
			if !ok {
				return
			}
			wins.Add(1)
			assert.Equal(t, int32(1), holders.Add(1))
			holders.Add(-1)
			l.Release(ctx, "seat:9", tok)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, wins.Load(), int32(1))
}
