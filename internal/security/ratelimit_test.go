package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestMessageLimiter_FirstHitSetsWindow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewMessageLimiter(db, 2, time.Minute)

	mock.ExpectIncr("ratelimit:msg:ADMIN:4").SetVal(1)
	mock.ExpectExpire("ratelimit:msg:ADMIN:4", time.Minute).SetVal(true)

	ok, err := limiter.Allow(context.Background(), "ADMIN:4")

	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageLimiter_OverLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewMessageLimiter(db, 2, time.Minute)

	mock.ExpectIncr("ratelimit:msg:USER:7").SetVal(3)

	ok, err := limiter.Allow(context.Background(), "USER:7")

	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageLimiter_FailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewMessageLimiter(db, 2, time.Minute)

	mock.ExpectIncr("ratelimit:msg:USER:7").SetErr(errors.New("connection refused"))

	ok, err := limiter.Allow(context.Background(), "USER:7")

	assert.Error(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageLimiter_Disabled(t *testing.T) {
	var nilLimiter *MessageLimiter
	ok, err := nilLimiter.Allow(context.Background(), "x")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewMessageLimiter(nil, 10, time.Minute).Allow(context.Background(), "x")
	assert.NoError(t, err)
	assert.True(t, ok)
}
