package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisSessionPrefix = "csvimport:session:"

// RedisConfigStore keeps import sessions in Redis with an expiry, so stale
// sessions disappear on their own.
type RedisConfigStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisConfigStore wraps a connected client. ttl <= 0 keeps sessions
// until deleted.
func NewRedisConfigStore(client *redis.Client, ttl time.Duration) *RedisConfigStore {
	return &RedisConfigStore{client: client, ttl: ttl}
}

// ConnectRedis parses url, connects and pings the server.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisConfigStore) Save(ctx context.Context, cfg *ImportConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode import config: %w", err)
	}
	if err := s.client.Set(ctx, redisSessionPrefix+cfg.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save import session: %w", err)
	}
	return nil
}

func (s *RedisConfigStore) Load(ctx context.Context, id string) (*ImportConfig, error) {
	data, err := s.client.Get(ctx, redisSessionPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load import session: %w", err)
	}

	var cfg ImportConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode import session %s: %w", id, err)
	}
	return &cfg, nil
}

func (s *RedisConfigStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, redisSessionPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("delete import session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}
