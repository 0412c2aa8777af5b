package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/qcconsole/repository"
)

// ErrSchemaMissing is returned when console_storage has not been migrated.
var ErrSchemaMissing = errors.New("console_storage table missing: run migrations")

type kvStore struct {
	pool   *pgxpool.Pool
	origin string
}

// NewKeyValueStore checks that the migrated storage table exists and returns a
// store scoped to origin.
func NewKeyValueStore(ctx context.Context, pool *pgxpool.Pool, origin string) (repository.KeyValueStore, error) {
	if origin == "" {
		origin = "default"
	}
	var present bool
	if err := pool.QueryRow(ctx, `SELECT to_regclass('console_storage') IS NOT NULL`).Scan(&present); err != nil {
		return nil, err
	}
	if !present {
		return nil, ErrSchemaMissing
	}
	return &kvStore{pool: pool, origin: origin}, nil
}

func (r *kvStore) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM console_storage WHERE origin = $1 AND key = $2`

	var value string
	if err := r.pool.QueryRow(ctx, query, r.origin, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (r *kvStore) Set(ctx context.Context, key, value string) error {
	const query = `
	INSERT INTO console_storage (origin, key, value, updated_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (origin, key) DO UPDATE
	SET value = EXCLUDED.value,
		updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query, r.origin, key, value)
	return err
}

func (r *kvStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	const query = `DELETE FROM console_storage WHERE origin = $1 AND key = ANY($2)`
	_, err := r.pool.Exec(ctx, query, r.origin, keys)
	return err
}

func (r *kvStore) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *kvStore) Close() error {
	r.pool.Close()
	return nil
}
