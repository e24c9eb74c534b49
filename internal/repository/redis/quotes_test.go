package redis

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteStore_PutGet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewQuoteStore(db, "twd")
	ctx := context.Background()

	mock.ExpectHSet("tixsync:v1:quotes:TWD", "ETH", "91000.5").SetVal(1)
	require.NoError(t, s.Put(ctx, "eth", decimal.RequireFromString("91000.5")))

	mock.ExpectHGet("tixsync:v1:quotes:TWD", "ETH").SetVal("91000.5")
	rate, ok, err := s.Get(ctx, "ETH")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.RequireFromString("91000.5")))

	mock.ExpectHGet("tixsync:v1:quotes:TWD", "DOGE").RedisNil()
	_, ok, err = s.Get(ctx, "doge")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuoteStore_GetRejectsGarbage(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewQuoteStore(db, "TWD")

	mock.ExpectHGet("tixsync:v1:quotes:TWD", "BTC").SetVal("lots")
	_, _, err := s.Get(context.Background(), "BTC")
	assert.Error(t, err)
}

func TestQuoteStore_AllSkipsUnparsable(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewQuoteStore(db, "TWD")

	mock.ExpectHGetAll("tixsync:v1:quotes:TWD").SetVal(map[string]string{
		"BTC": "2500000",
		"BAD": "x",
	})

	all, err := s.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.True(t, all["BTC"].Equal(decimal.NewFromInt(2500000)))
}

func TestQuoteStore_Delete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewQuoteStore(db, "TWD")
	ctx := context.Background()

	mock.ExpectHDel("tixsync:v1:quotes:TWD", "ETH").SetVal(1)
	ok, err := s.Delete(ctx, "eth")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectHDel("tixsync:v1:quotes:TWD", "ETH").SetVal(0)
	ok, err = s.Delete(ctx, "eth")
	require.NoError(t, err)
	assert.False(t, ok)
}
