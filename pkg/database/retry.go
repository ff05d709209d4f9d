package database

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers treated as transient.
const (
	errTooManyConnections = 1040
	errLockWaitTimeout    = 1205
	errDeadlock           = 1213
)

// RetryConfig controls transient-error retries on tenant databases.
type RetryConfig struct {
	MaxAttempts int
	// Backoff applied between attempts when the server reports connection
	// exhaustion. Deadlocks and lock wait timeouts retry immediately.
	ConnectionBackoff time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		ConnectionBackoff: 5 * time.Second,
	}
}

// IsTransient reports whether err is a MySQL error that may succeed on retry.
func IsTransient(err error) bool {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return false
	}
	switch mysqlErr.Number {
	case errTooManyConnections, errLockWaitTimeout, errDeadlock:
		return true
	}
	return false
}

func isConnectionExhaustion(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errTooManyConnections
}

// WithRetry runs fn, retrying up to cfg.MaxAttempts times while fn returns a
// transient error. Non-transient errors propagate immediately.
func WithRetry(ctx context.Context, cfg RetryConfig, logger ectologger.Logger, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) || attempt == attempts {
			return lastErr
		}

		logger.WithContext(ctx).WithError(lastErr).WithFields(map[string]any{
			"attempt":      attempt,
			"max_attempts": attempts,
		}).Warn("Transient database error, retrying")

		if isConnectionExhaustion(lastErr) && cfg.ConnectionBackoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.ConnectionBackoff):
			}
		}
	}
	return lastErr
}
