package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fastygo/qcconsole/domain"
)

// Storage keys shared by every backend.
const (
	KeyUserData     = "user_data"
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// AuthStorage persists the user profile and token pair.
type AuthStorage struct {
	store KeyValueStore
}

func NewAuthStorage(store KeyValueStore) *AuthStorage {
	return &AuthStorage{store: store}
}

// GetUser returns nil without error when no profile is stored.
func (s *AuthStorage) GetUser(ctx context.Context) (*domain.UserProfile, error) {
	raw, ok, err := s.store.Get(ctx, KeyUserData)
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	var user domain.UserProfile
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("decode stored user: %w", err)
	}
	return &user, nil
}

func (s *AuthStorage) SetUser(ctx context.Context, user *domain.UserProfile) error {
	if user == nil {
		return domain.ErrInvalidUser
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, KeyUserData, string(payload))
}

func (s *AuthStorage) RemoveUser(ctx context.Context) error {
	return s.store.Delete(ctx, KeyUserData)
}

func (s *AuthStorage) GetAccessToken(ctx context.Context) (string, error) {
	return s.token(ctx, KeyAccessToken)
}

func (s *AuthStorage) GetRefreshToken(ctx context.Context) (string, error) {
	return s.token(ctx, KeyRefreshToken)
}

// SetTokens rejects the pair before writing if either token is empty.
func (s *AuthStorage) SetTokens(ctx context.Context, tokens domain.TokenPair) error {
	if !tokens.Valid() {
		return domain.ErrInvalidTokens
	}
	if err := s.store.Set(ctx, KeyAccessToken, tokens.AccessToken); err != nil {
		return err
	}
	return s.store.Set(ctx, KeyRefreshToken, tokens.RefreshToken)
}

func (s *AuthStorage) SetAccessToken(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrInvalidTokens
	}
	return s.store.Set(ctx, KeyAccessToken, token)
}

func (s *AuthStorage) RemoveTokens(ctx context.Context) error {
	return s.store.Delete(ctx, KeyAccessToken, KeyRefreshToken)
}

// Clear removes every session key.
func (s *AuthStorage) Clear(ctx context.Context) error {
	return s.store.Delete(ctx, KeyUserData, KeyAccessToken, KeyRefreshToken)
}

func (s *AuthStorage) token(ctx context.Context, key string) (string, error) {
	value, ok, err := s.store.Get(ctx, key)
	if err != nil || !ok {
		return "", err
	}
	return value, nil
}
