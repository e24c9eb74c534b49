package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*SlidingWindowLimiter, redismock.ClientMock, time.Time) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	now := time.UnixMilli(1_700_000_000_000)

	l := NewSlidingWindowLimiter(db, "reserve", 3, time.Minute)
	l.now = func() time.Time { return now }
	l.member = func() string { return "hit-1" }

	return l, mock, now
}

func TestSlidingWindowLimiter_Admits(t *testing.T) {
	l, mock, now := newTestLimiter(t)

	mock.ExpectEvalSha(slidingWindowScript.Hash(), []string{"tixsync:v1:rl:reserve:user:7"},
		now.UnixMilli(), int64(60000), 3, "hit-1",
	).SetVal([]interface{}{int64(1), int64(2), int64(0)})

	d, err := l.Allow(context.Background(), "user:7")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(2), d.Current)
	assert.Zero(t, d.RetryAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlidingWindowLimiter_RejectsWithRetryAfter(t *testing.T) {
	l, mock, now := newTestLimiter(t)

	mock.ExpectEvalSha(slidingWindowScript.Hash(), []string{"tixsync:v1:rl:reserve:user:7"},
		now.UnixMilli(), int64(60000), 3, "hit-1",
	).SetVal([]interface{}{int64(0), int64(3), int64(12500)})

	d, err := l.Allow(context.Background(), "user:7")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 12500*time.Millisecond, d.RetryAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlidingWindowLimiter_StoreError(t *testing.T) {
	l, mock, now := newTestLimiter(t)

	mock.ExpectEvalSha(slidingWindowScript.Hash(), []string{"tixsync:v1:rl:reserve:user:7"},
		now.UnixMilli(), int64(60000), 3, "hit-1",
	).SetErr(errors.New("connection reset"))

	_, err := l.Allow(context.Background(), "user:7")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
