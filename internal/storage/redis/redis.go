package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Storage keeps cache entries as plain redis strings under a key prefix.
type Storage struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

func New(ctx context.Context, url, prefix string, ttl time.Duration) (*Storage, error) {
	const op = "storage.redis.New"

	if url == "" {
		return nil, fmt.Errorf("%s: redis url is not set", op)
	}

	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%s: parse url: %w", op, err)
	}

	client := goredis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return NewFromClient(client, prefix, ttl), nil
}

func NewFromClient(client *goredis.Client, prefix string, ttl time.Duration) *Storage {
	return &Storage{client: client, prefix: prefix, ttl: ttl}
}

func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	const op = "storage.redis.Get"

	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s: get %q: %w", op, key, err)
	}

	return value, true, nil
}

// Set stores value with the configured TTL. A zero TTL keeps the key forever.
func (s *Storage) Set(ctx context.Context, key, value string) error {
	const op = "storage.redis.Set"

	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("%s: set %q: %w", op, key, err)
	}

	return nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	const op = "storage.redis.Delete"

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("%s: del %q: %w", op, key, err)
	}

	return nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}
