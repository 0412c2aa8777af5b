package repository

import "context"

// KeyValueStore is the persistent, origin-scoped string store that mirrors the
// session. Get reports ok=false for absent keys.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}
