package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/emrgen/revisor/store"
)

var _ PublishedCache = (*RedisCache)(nil)

// RedisCache caches published rows as JSON. Timestamps come back as RFC 3339
// strings, which the record accessors coerce.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr string, ttl time.Duration) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // No password set
		DB:       0,  // Use default DB
		Protocol: 2,  // Connection protocol
	})
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisCache{client: client, ttl: ttl}
}

func publishedKey(base string, id any) string {
	return fmt.Sprintf("revisor:published:%s:%v", base, id)
}

func (r *RedisCache) Get(ctx context.Context, base string, id any) (store.Row, error) {
	res := r.client.Get(ctx, publishedKey(base, id))
	if res.Err() != nil {
		if errors.Is(res.Err(), redis.Nil) {
			return nil, nil
		}
		return nil, res.Err()
	}

	buf, err := res.Bytes()
	if err != nil {
		return nil, err
	}
	row := store.Row{}
	if err := json.Unmarshal(buf, &row); err != nil {
		return nil, err
	}
	return row, nil
}

func (r *RedisCache) Set(ctx context.Context, base string, id any, row store.Row) error {
	buf, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, publishedKey(base, id), buf, r.ttl).Err()
}

func (r *RedisCache) Delete(ctx context.Context, base string, id any) error {
	return r.client.Del(ctx, publishedKey(base, id)).Err()
}
