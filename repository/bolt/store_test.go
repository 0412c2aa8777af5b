package bolt

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T, path, origin string) *Store {
	t.Helper()
	store, err := Open(path, origin)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func TestStoreRoundTripSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.db")

	store := openTestStore(t, path, "https://console.local")
	if err := store.Set(ctx, "access_token", "abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openTestStore(t, path, "https://console.local")
	defer reopened.Close()

	value, ok, err := reopened.Get(ctx, "access_token")
	if err != nil || !ok || value != "abc" {
		t.Fatalf("unexpected get result: value=%q ok=%v err=%v", value, ok, err)
	}
	if size, err := reopened.Size(); err != nil || size != 1 {
		t.Fatalf("unexpected size %d err=%v", size, err)
	}
}

func TestStoreOriginsAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	store := openTestStore(t, path, "a")
	if err := store.Set(ctx, "user_data", "{}"); err != nil {
		t.Fatalf("set: %v", err)
	}
	store.Close()

	other := openTestStore(t, path, "b")
	defer other.Close()
	if _, ok, err := other.Get(ctx, "user_data"); err != nil || ok {
		t.Fatalf("origin b must not see origin a keys: ok=%v err=%v", ok, err)
	}
}

func TestStoreDeleteIgnoresMissingKeys(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "session.db"), "")
	defer store.Close()

	if err := store.Set(ctx, "k1", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Delete(ctx, "k1", "missing"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k1"); ok {
		t.Fatalf("k1 should be gone")
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestClosedStoreReturnsError(t *testing.T) {
	var store *Store
	if _, _, err := store.Get(context.Background(), "k"); err == nil {
		t.Fatalf("expected error on nil store")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close of nil store should be a no-op: %v", err)
	}
}
