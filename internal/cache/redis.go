package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func NewRedisHashStore(client redis.UniversalClient) *RedisHashStore {
	return &RedisHashStore{client: client}
}

type RedisHashStore struct {
	client redis.UniversalClient
}

func (r *RedisHashStore) GetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	return fields, nil
}

func (r *RedisHashStore) SetField(ctx context.Context, key, field string, value any) error {
	if err := r.client.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("redis hset failed: %w", err)
	}
	return nil
}

func (r *RedisHashStore) SetFieldIfAbsent(ctx context.Context, key, field string, value any) (bool, error) {
	ok, err := r.client.HSetNX(ctx, key, field, value).Result()
	if err != nil {
		return false, fmt.Errorf("redis hsetnx failed: %w", err)
	}
	return ok, nil
}

func (r *RedisHashStore) IncrementField(ctx context.Context, key, field string, delta int64) (int64, error) {
	n, err := r.client.HIncrBy(ctx, key, field, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hincrby failed: %w", err)
	}
	return n, nil
}

func (r *RedisHashStore) DeleteField(ctx context.Context, key, field string) error {
	if err := r.client.HDel(ctx, key, field).Err(); err != nil {
		return fmt.Errorf("redis hdel failed: %w", err)
	}
	return nil
}

func (r *RedisHashStore) FieldExists(ctx context.Context, key, field string) (bool, error) {
	ok, err := r.client.HExists(ctx, key, field).Result()
	if err != nil {
		return false, fmt.Errorf("redis hexists failed: %w", err)
	}
	return ok, nil
}

func (r *RedisHashStore) DeleteKey(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisHashStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("redis expire failed: %w", err)
	}
	return nil
}
