package database

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func retryTestLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&mysql.MySQLError{Number: 1040}))
	assert.True(t, IsTransient(&mysql.MySQLError{Number: 1205}))
	assert.True(t, IsTransient(&mysql.MySQLError{Number: 1213}))

	assert.False(t, IsTransient(&mysql.MySQLError{Number: 1062}))
	assert.False(t, IsTransient(errors.New("plain error")))
	assert.False(t, IsTransient(nil))

	// wrapped transient errors are still recognized
	wrapped := errors.Join(errors.New("locking tables"), &mysql.MySQLError{Number: 1213})
	assert.True(t, IsTransient(wrapped))
}

func TestWithRetrySucceedsAfterTransientError(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), RetryConfig{MaxAttempts: 3}, retryTestLogger(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &mysql.MySQLError{Number: 1213}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnNonTransientError(t *testing.T) {
	calls := 0
	wantErr := errors.New("syntax error")
	err := WithRetry(context.Background(), RetryConfig{MaxAttempts: 3}, retryTestLogger(), func(ctx context.Context) error {
		calls++
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), RetryConfig{MaxAttempts: 2}, retryTestLogger(), func(ctx context.Context) error {
		calls++
		return &mysql.MySQLError{Number: 1205}
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestWithRetryTreatsZeroAttemptsAsOne(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), RetryConfig{}, retryTestLogger(), func(ctx context.Context) error {
		calls++
		return &mysql.MySQLError{Number: 1213}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
