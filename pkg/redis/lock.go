package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrLockNotHeld     = errors.New("lock not held")
)

// Release and extend must only act when the stored token still matches this
// holder, so both are compare-and-act Lua scripts.
var (
	releaseScript = redis.NewScript(
		`if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) end return 0`)
	extendScript = redis.NewScript(
		`if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("pexpire", KEYS[1], ARGV[2]) end return 0`)
)

// Locker hands out distributed locks under a shared key prefix. A branch
// merge holds one for its whole run so two API instances cannot replay the
// same branch concurrently.
type Locker struct {
	client *Client
	prefix string
}

func NewLocker(client *Client, prefix string) *Locker {
	if prefix == "" {
		prefix = "locks"
	}
	return &Locker{client: client, prefix: prefix + ":"}
}

// Lock is one held distributed lock. The token makes release and extend
// safe: a lock that expired and was re-acquired elsewhere is never touched
// by the previous holder.
type Lock struct {
	client *Client
	key    string
	token  string
}

// Acquire takes the lock or fails immediately with ErrLockNotAcquired when
// another holder has it. The TTL bounds how long a crashed holder can block
// others.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	key := l.prefix + name
	token := uuid.NewString()

	acquired, err := l.client.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrLockNotAcquired
	}

	l.client.logger.WithContext(ctx).WithField("lock", key).Debug("Acquired lock")
	return &Lock{client: l.client, key: key, token: token}, nil
}

func (lock *Lock) Release(ctx context.Context) error {
	deleted, err := releaseScript.Run(ctx, lock.client.rdb, []string{lock.key}, lock.token).Int64()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLockNotHeld
	}

	lock.client.logger.WithContext(ctx).WithField("lock", lock.key).Debug("Released lock")
	return nil
}

// Extend pushes the TTL out for a merge that runs longer than expected.
func (lock *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	extended, err := extendScript.Run(ctx, lock.client.rdb, []string{lock.key}, lock.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if extended == 0 {
		return ErrLockNotHeld
	}
	return nil
}
