package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fastygo/qcconsole/domain"
)

type memoryStore struct {
	mu     sync.Mutex
	data   map[string]string
	writes int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.data[key] = value
	return nil
}

func (m *memoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) Ping(context.Context) error { return nil }
func (m *memoryStore) Close() error               { return nil }

func TestSetTokensRejectsPartialPair(t *testing.T) {
	tests := []struct {
		name   string
		tokens domain.TokenPair
	}{
		{name: "empty access", tokens: domain.TokenPair{AccessToken: "", RefreshToken: "x"}},
		{name: "empty refresh", tokens: domain.TokenPair{AccessToken: "x", RefreshToken: ""}},
		{name: "both empty", tokens: domain.TokenPair{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := newMemoryStore()
			storage := NewAuthStorage(mem)

			err := storage.SetTokens(context.Background(), tt.tokens)
			if !errors.Is(err, domain.ErrInvalidTokens) {
				t.Fatalf("expected ErrInvalidTokens, got %v", err)
			}
			if mem.writes != 0 || len(mem.data) != 0 {
				t.Fatalf("nothing may be written on rejection, writes=%d data=%v", mem.writes, mem.data)
			}
		})
	}
}

func TestUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage := NewAuthStorage(newMemoryStore())

	if user, err := storage.GetUser(ctx); err != nil || user != nil {
		t.Fatalf("expected no user, got %+v err=%v", user, err)
	}

	in := &domain.UserProfile{
		ID:       "u-1",
		Username: "qc.lead",
		Email:    "lead@plant.example",
		Role:     domain.Reference{ID: "r-1", Name: "Manager"},
	}
	if err := storage.SetUser(ctx, in); err != nil {
		t.Fatalf("set user: %v", err)
	}
	out, err := storage.GetUser(ctx)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if out.ID != in.ID || out.Role.Name != "Manager" || out.Email != in.Email {
		t.Fatalf("round trip mismatch: %+v", out)
	}

	if err := storage.SetUser(ctx, nil); !errors.Is(err, domain.ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
}

func TestCorruptUserIsAnError(t *testing.T) {
	mem := newMemoryStore()
	mem.data[KeyUserData] = "{not json"
	if _, err := NewAuthStorage(mem).GetUser(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestTokensAndClear(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryStore()
	storage := NewAuthStorage(mem)

	if err := storage.SetTokens(ctx, domain.TokenPair{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatalf("set tokens: %v", err)
	}
	if err := storage.SetAccessToken(ctx, "a2"); err != nil {
		t.Fatalf("set access token: %v", err)
	}
	access, _ := storage.GetAccessToken(ctx)
	refresh, _ := storage.GetRefreshToken(ctx)
	if access != "a2" || refresh != "r" {
		t.Fatalf("unexpected tokens %q %q", access, refresh)
	}

	_ = storage.SetUser(ctx, &domain.UserProfile{ID: "u"})
	if err := storage.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(mem.data) != 0 {
		t.Fatalf("expected all keys removed, got %v", mem.data)
	}
}
