package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrCapLockTimeout is returned when a cap scope lock could not be acquired in time
var ErrCapLockTimeout = errors.New("timed out waiting for cap lock")

// CapLocker serializes the check-then-send sequence of one cap scope
type CapLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// unlockScript deletes the key only if it still holds our token
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCapLocker holds a SETNX lock per scope across processes
type RedisCapLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

func NewRedisCapLocker(client redis.UniversalClient, prefix string, ttl, wait time.Duration) *RedisCapLocker {
	return &RedisCapLocker{
		client: client,
		prefix: prefix + "caplock:",
		ttl:    ttl,
		wait:   wait,
		poll:   25 * time.Millisecond,
	}
}

func (l *RedisCapLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := l.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				// Release with a fresh context; the caller's may already be cancelled
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = unlockScript.Run(ctx, l.client, []string{lockKey}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrCapLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}

// LocalCapLocker serializes scopes inside one process
type LocalCapLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	wait  time.Duration
}

func NewLocalCapLocker(wait time.Duration) *LocalCapLocker {
	return &LocalCapLocker{slots: make(map[string]chan struct{}), wait: wait}
}

func (l *LocalCapLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *LocalCapLocker) Lock(ctx context.Context, key string) (func(), error) {
	ch := l.slot(key)

	var timeout <-chan time.Time
	if l.wait > 0 {
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, ErrCapLockTimeout
	}
}
