package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/PIO-VIA/Snapppy/internal/config"
	"github.com/PIO-VIA/Snapppy/internal/storage/memory"
	"github.com/PIO-VIA/Snapppy/internal/storage/postgres"
	"github.com/PIO-VIA/Snapppy/internal/storage/redis"
	"github.com/PIO-VIA/Snapppy/internal/storage/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

// KV is the local persisted state: opaque string values addressed by key.
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

var (
	_ KV = (*sqlite.Storage)(nil)
	_ KV = (*postgres.Storage)(nil)
	_ KV = (*redis.Storage)(nil)
	_ KV = (*memory.Storage)(nil)
)

func Open(ctx context.Context, cfg config.StorageConfig) (KV, error) {
	const op = "storage.Open"

	switch cfg.Driver {
	case DriverSQLite, "":
		s, err := sqlite.New(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, nil

	case DriverPostgres:
		s, err := postgres.New(ctx, cfg.DSN, cfg.Table)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, nil

	case DriverRedis:
		s, err := redis.New(ctx, cfg.RedisURL, cfg.Prefix, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, nil

	case DriverMemory:
		return memory.New(), nil
	}

	return nil, fmt.Errorf("%s: %w: %q", op, ErrUnknownDriver, cfg.Driver)
}
