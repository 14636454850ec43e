package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/PIO-VIA/Snapppy/internal/config"
)

func openAll(t *testing.T) map[string]KV {
	t.Helper()

	ctx := context.Background()
	stores := map[string]KV{}

	cfgs := []config.StorageConfig{
		{Driver: DriverMemory},
		{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "cache.db")},
	}

	// external backends run only when pointed at a disposable instance
	if dsn := os.Getenv("SNAPPY_TEST_POSTGRES_DSN"); dsn != "" {
		cfgs = append(cfgs, config.StorageConfig{Driver: DriverPostgres, DSN: dsn, Table: "kv_test_" + strconv.FormatInt(time.Now().UnixNano(), 36)})
	}
	if url := os.Getenv("SNAPPY_TEST_REDIS_URL"); url != "" {
		cfgs = append(cfgs, config.StorageConfig{Driver: DriverRedis, RedisURL: url, Prefix: "snappy-test:" + strconv.FormatInt(time.Now().UnixNano(), 36) + ":", TTL: time.Minute})
	}

	for _, cfg := range cfgs {
		kv, err := Open(ctx, cfg)
		if err != nil {
			t.Fatalf("open %s: %v", cfg.Driver, err)
		}
		t.Cleanup(func() { _ = kv.Close() })
		stores[cfg.Driver] = kv
	}

	return stores
}

func TestKV_Contract(t *testing.T) {
	for name, kv := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, found, err := kv.Get(ctx, "userChats"); err != nil || found {
				t.Fatalf("expected miss, got found=%v err=%v", found, err)
			}

			if err := kv.Set(ctx, "userChats", `[{"a":1}]`); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := kv.Set(ctx, "userChats", `[]`); err != nil {
				t.Fatalf("overwrite: %v", err)
			}

			v, found, err := kv.Get(ctx, "userChats")
			if err != nil || !found || v != `[]` {
				t.Fatalf("expected overwritten value, got %q found=%v err=%v", v, found, err)
			}

			if err := kv.Set(ctx, "contact:Zoë", "u-zoe"); err != nil {
				t.Fatalf("set non-ascii key: %v", err)
			}
			if v, found, err := kv.Get(ctx, "contact:Zoë"); err != nil || !found || v != "u-zoe" {
				t.Fatalf("expected non-ascii key to round-trip, got %q found=%v err=%v", v, found, err)
			}

			if err := kv.Delete(ctx, "userChats"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, found, _ := kv.Get(ctx, "userChats"); found {
				t.Fatal("expected key to be deleted")
			}
			if _, found, _ := kv.Get(ctx, "contact:Zoë"); !found {
				t.Fatal("delete must only remove its own key")
			}
		})
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := config.StorageConfig{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "cache.db")}

	kv, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := kv.Set(ctx, "user", `{"externalId":"u-me"}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	_ = kv.Close()

	kv, err = Open(ctx, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer kv.Close()

	v, found, err := kv.Get(ctx, "user")
	if err != nil || !found || v != `{"externalId":"u-me"}` {
		t.Fatalf("expected persisted value, got %q found=%v err=%v", v, found, err)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Driver: "leveldb"})
	if !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}
