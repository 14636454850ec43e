package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const defaultTable = "kv"

type Storage struct {
	db    *sqlx.DB
	table string
}

func New(ctx context.Context, dsn, table string) (*Storage, error) {
	const op = "storage.postgres.New"

	if table == "" {
		table = defaultTable
	}

	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", op, err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	s := &Storage{db: db, table: pq.QuoteIdentifier(table)}

	if _, err := db.ExecContext(ctx, s.schema()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: apply schema: %w", op, err)
	}

	return s, nil
}

func (s *Storage) schema() string {
	return `
		CREATE TABLE IF NOT EXISTS ` + s.table + ` (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
}

func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	const op = "storage.postgres.Get"

	var value string

	err := s.db.GetContext(
		ctx,
		&value,
		`SELECT value FROM `+s.table+` WHERE key = $1`,
		key,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("%s: select %q: %w", op, key, err)
	}

	return value, true, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	const op = "storage.postgres.Set"

	_, err := s.db.ExecContext(
		ctx,
		`
		INSERT INTO `+s.table+` (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
		`,
		key,
		value,
	)

	if err != nil {
		return fmt.Errorf("%s: upsert %q: %w", op, key, err)
	}

	return nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	const op = "storage.postgres.Delete"

	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE key = $1`, key); err != nil {
		return fmt.Errorf("%s: delete %q: %w", op, key, err)
	}

	return nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}
