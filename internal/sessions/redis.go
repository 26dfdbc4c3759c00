package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Simplici0/labsite/internal/calculator"
)

const keyPrefix = "calc:"

// RedisStore is a Store shared by several server processes.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and checks that it answers.
func NewRedisStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 2,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

// Close closes the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Load(ctx context.Context, id string) (calculator.State, error) {
	data, err := s.client.Get(ctx, buildKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return calculator.State{}, ErrNotFound
	}
	if err != nil {
		return calculator.State{}, fmt.Errorf("get calculator state: %w", err)
	}

	var st calculator.State
	if err := json.Unmarshal(data, &st); err != nil {
		return calculator.State{}, fmt.Errorf("unmarshal calculator state: %w", err)
	}
	return st, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, st calculator.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal calculator state: %w", err)
	}
	if err := s.client.Set(ctx, buildKey(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set calculator state: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, buildKey(id)).Err(); err != nil {
		return fmt.Errorf("delete calculator state: %w", err)
	}
	return nil
}

func buildKey(id string) string {
	return keyPrefix + id
}
