package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*Locker, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	l := NewLocker(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	l.newToken = func() string { return "tok-1" }
	return l, mock
}

func TestLocker_AcquireSetsTokenWithTTL(t *testing.T) {
	l, mock := newTestLocker(t)
	ctx := context.Background()

	mock.ExpectSetNX("seat:7", "tok-1", 5*time.Second).SetVal(true)

	tok, ok := l.Acquire(ctx, KeyTicketTypeLock(7), 5*time.Second)
	require.True(t, ok)
	assert.Equal(t, "tok-1", tok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_AcquireHeldElsewhere(t *testing.T) {
	l, mock := newTestLocker(t)

	mock.ExpectSetNX("seat:7", "tok-1", 5*time.Second).SetVal(false)

	tok, ok := l.Acquire(context.Background(), "seat:7", 5*time.Second)
	assert.False(t, ok)
	assert.Empty(t, tok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_AcquireStoreErrorIsNotAcquired(t *testing.T) {
	l, mock := newTestLocker(t)

	mock.ExpectSetNX("seat:7", "tok-1", 5*time.Second).SetErr(errors.New("connection refused"))

	_, ok := l.Acquire(context.Background(), "seat:7", 5*time.Second)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_ReleaseComparesToken(t *testing.T) {
	l, mock := newTestLocker(t)
	ctx := context.Background()

	mock.ExpectEvalSha(unlockScript.Hash(), []string{"seat:7"}, "tok-1").SetVal(int64(1))
	assert.True(t, l.Release(ctx, "seat:7", "tok-1"))

	mock.ExpectEvalSha(unlockScript.Hash(), []string{"seat:7"}, "stale").SetVal(int64(0))
	assert.False(t, l.Release(ctx, "seat:7", "stale"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_ReleaseErrorIsSwallowed(t *testing.T) {
	l, mock := newTestLocker(t)

	mock.ExpectEvalSha(unlockScript.Hash(), []string{"seat:7"}, "tok-1").SetErr(errors.New("timeout"))

	assert.False(t, l.Release(context.Background(), "seat:7", "tok-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_ReleaseEmptyTokenSkipsStore(t *testing.T) {
	l, mock := newTestLocker(t)

	assert.False(t, l.Release(context.Background(), "seat:7", ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}
