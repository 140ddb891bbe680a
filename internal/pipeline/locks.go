package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/goods-receipt/internal/common"
)

// Locker serializes work on one document across workers.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// KeyedMutex is an in-process Locker. Waiters give up when ctx ends.
type KeyedMutex struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{held: map[string]chan struct{}{}}
}

func (k *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	for {
		k.mu.Lock()
		ch, busy := k.held[key]
		if !busy {
			ch = make(chan struct{})
			k.held[key] = ch
			k.mu.Unlock()
			var once sync.Once
			return func() {
				once.Do(func() {
					k.mu.Lock()
					delete(k.held, key)
					k.mu.Unlock()
					close(ch)
				})
			}, nil
		}
		k.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, common.NewAppError("LOCKED", key, errors.Join(common.ErrLocked, ctx.Err()))
		}
	}
}

// RedisLocker holds a redislock lease per document so several daemons can
// share one inbox.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(250*time.Millisecond), 40),
	}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lock, err := r.client.Obtain(ctx, "goodsreceipt:doc:"+key, r.ttl, &redislock.Options{RetryStrategy: r.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, common.NewAppError("LOCKED", key, common.ErrLocked)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func() {
		// the lease may already have expired; nothing to undo then
		_ = lock.Release(context.WithoutCancel(ctx))
	}, nil
}
