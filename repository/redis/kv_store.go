package redis

import (
	"context"
	"errors"
	"fmt"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/qcconsole/repository"
)

type kvStore struct {
	client *redislib.Client
	prefix string
}

// NewKeyValueStore creates a Redis-backed store scoped to origin.
func NewKeyValueStore(client *redislib.Client, origin string) repository.KeyValueStore {
	if origin == "" {
		origin = "default"
	}
	return &kvStore{
		client: client,
		prefix: fmt.Sprintf("auth:%s:", origin),
	}
}

func (r *kvStore) Get(ctx context.Context, key string) (string, bool, error) {
	result, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return result, true, nil
}

// Set stores without expiry; token lifetime is read from the token itself.
func (r *kvStore) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *kvStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, key := range keys {
		full = append(full, r.key(key))
	}
	return r.client.Del(ctx, full...).Err()
}

func (r *kvStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *kvStore) Close() error {
	return r.client.Close()
}

func (r *kvStore) key(key string) string {
	return r.prefix + key
}
