package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ikkim/udonggeum-cartsync/internal/cart"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "cartsync:snapshot:"

// RedisStore keeps each snapshot as one JSON value.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ cart.SnapshotStore = (*RedisStore)(nil)

// NewRedisStore returns a store whose entries expire after ttl; zero keeps them forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, key string, lines []cart.Line) error {
	if lines == nil {
		lines = []cart.Line{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}

// Load returns nil lines when nothing is stored under key.
func (s *RedisStore) Load(ctx context.Context, key string) ([]cart.Line, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}

	var lines []cart.Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return lines, nil
}
