package keyValue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Value struct {
	value   string
	expires time.Time
}

var mutex sync.RWMutex
var hashmap = make(map[string]Value)

var sugar *zap.SugaredLogger
var redisClient *redis.Client
var selfContained = true

var stopExpiry context.CancelFunc

// Setup picks the backend. With selfContained everything lives in this
// process, otherwise in redis so several servers can share it.
func Setup(_sugar *zap.SugaredLogger, _redisClient *redis.Client, _selfContained bool) {
	sugar = _sugar
	redisClient = _redisClient
	selfContained = _selfContained

	if stopExpiry != nil {
		stopExpiry()
		stopExpiry = nil
	}

	if selfContained {
		ctx, cancel := context.WithCancel(context.Background())
		stopExpiry = cancel
		go checkForLocalExpiredKeys(ctx)
	}
}

func checkForLocalExpiredKeys(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			mutex.Lock()
			for key, v := range hashmap {
				if v.expires.Before(now) {
					delete(hashmap, key)
				}
			}
			mutex.Unlock()
		}
	}
}

func Get(ctx context.Context, key string) (string, error) {
	if selfContained {
		mutex.RLock()
		defer mutex.RUnlock()

		v, ok := hashmap[key]
		if !ok || v.expires.Before(time.Now()) {
			return "", nil
		}
		return v.value, nil
	}

	value, err := redisClient.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	} else if err != nil {
		return "", err
	}

	return value, nil
}

func Set(ctx context.Context, key string, value string, expires time.Duration) error {
	if selfContained {
		mutex.Lock()
		defer mutex.Unlock()

		hashmap[key] = Value{value, time.Now().Add(expires)}

		return nil
	}

	return redisClient.Set(ctx, key, value, expires).Err()
}

// SetNX only writes when the key is missing or expired and reports whether
// it did.
func SetNX(ctx context.Context, key string, value string, expires time.Duration) (bool, error) {
	if selfContained {
		mutex.Lock()
		defer mutex.Unlock()

		v, ok := hashmap[key]
		if ok && !v.expires.Before(time.Now()) {
			return false, nil
		}
		hashmap[key] = Value{value, time.Now().Add(expires)}
		return true, nil
	}

	return redisClient.SetNX(ctx, key, value, expires).Result()
}

func Del(ctx context.Context, key string) error {
	if selfContained {
		mutex.Lock()
		defer mutex.Unlock()

		delete(hashmap, key)
		return nil
	}

	return redisClient.Del(ctx, key).Err()
}
