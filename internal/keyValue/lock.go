package keyValue

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockShards = 256

var localLocks = func() [lockShards]chan struct{} {
	var shards [lockShards]chan struct{}
	for i := range shards {
		shards[i] = make(chan struct{}, 1)
	}
	return shards
}()

var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

const lockRetryInterval = 5 * time.Millisecond

// Lock blocks until it holds key or ctx is done. In-process locks are
// sharded by key hash, so two keys may share a shard but one key never
// maps to two. Redis locks expire after ttl in case the holder dies.
func Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if selfContained {
		shard := localLocks[xxhash.Sum64String(key)%lockShards]
		select {
		case shard <- struct{}{}:
			return func() { <-shard }, nil
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock %s: %w", key, ctx.Err())
		}
	}

	lockKey := "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		acquired, err := redisClient.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if acquired {
			return func() {
				// the request context may be gone by now
				err := unlockScript.Run(context.Background(), redisClient, []string{lockKey}, token).Err()
				if err != nil {
					sugar.Errorf("Releasing lock %s: %v", lockKey, err)
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Locker hands out locks with a fixed ttl.
type Locker struct {
	TTL time.Duration
}

func (l Locker) Lock(ctx context.Context, key string) (func(), error) {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return Lock(ctx, key, ttl)
}
