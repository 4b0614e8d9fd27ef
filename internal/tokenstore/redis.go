package tokenstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository implements Repository using Redis as the backing store.
// Records are stored as JSON under key: "device:<deviceID>" with the given TTL
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a Redis-based credential repository. Prefix may be empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "device:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(deviceID string) string {
	return r.prefix + deviceID
}

func (r *RedisRepository) Put(ctx context.Context, deviceID string, rec *Record, ttl time.Duration) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		// ensure a minimal TTL so Redis won't store expired records
		ttl = time.Second
	}
	return r.client.Set(ctx, r.key(deviceID), b, ttl).Err()
}

func (r *RedisRepository) Get(ctx context.Context, deviceID string) (*Record, error) {
	b, err := r.client.Get(ctx, r.key(deviceID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	// treat a record past its own expiry as missing
	if !rec.ExpiresAt.IsZero() && time.Now().UTC().After(rec.ExpiresAt) {
		_ = r.client.Del(ctx, r.key(deviceID)).Err()
		return nil, nil
	}
	return &rec, nil
}

func (r *RedisRepository) Delete(ctx context.Context, deviceID string) error {
	return r.client.Del(ctx, r.key(deviceID)).Err()
}
