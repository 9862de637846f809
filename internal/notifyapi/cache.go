package notifyapi

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Resolver interface {
	Resolve(ctx context.Context, serviceID, templateID string) (string, error)
}

// cacheStore is the subset of *redis.Client the cache needs.
type cacheStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// CachedResolver keeps successfully resolved templates in redis. Cache
// errors never fail a resolution; they fall through to the wrapped resolver.
type CachedResolver struct {
	next      Resolver
	store     cacheStore
	ttl       time.Duration
	keyPrefix string
	log       *zap.Logger
}

func NewCachedResolver(next Resolver, rdb *redis.Client, ttl time.Duration, keyPrefix string, log *zap.Logger) *CachedResolver {
	return newCachedResolver(next, rdb, ttl, keyPrefix, log)
}

func newCachedResolver(next Resolver, store cacheStore, ttl time.Duration, keyPrefix string, log *zap.Logger) *CachedResolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if keyPrefix == "" {
		keyPrefix = "tpl:"
	}
	return &CachedResolver{next: next, store: store, ttl: ttl, keyPrefix: keyPrefix, log: log}
}

func (r *CachedResolver) key(serviceID, templateID string) string {
	return r.keyPrefix + serviceID + ":" + templateID
}

func (r *CachedResolver) Resolve(ctx context.Context, serviceID, templateID string) (string, error) {
	key := r.key(serviceID, templateID)

	content, err := r.store.Get(ctx, key).Result()
	switch {
	case err == nil:
		return content, nil
	case !errors.Is(err, redis.Nil):
		r.log.Warn("template cache get failed", zap.String("key", key), zap.Error(err))
	}

	content, err = r.next.Resolve(ctx, serviceID, templateID)
	if err != nil {
		return "", err
	}

	if err := r.store.Set(ctx, key, content, r.ttl).Err(); err != nil {
		r.log.Warn("template cache set failed", zap.String("key", key), zap.Error(err))
	}
	return content, nil
}
