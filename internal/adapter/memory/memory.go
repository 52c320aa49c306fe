// Package memory implements in-memory adapters for development and testing.
package memory

import (
	"context"
	"sync"

	"petsession/internal/domain"
)

// TokenStore is an in-memory domain.TokenStore. It does not survive a
// process restart; use securestore for real deployments.
type TokenStore struct {
	mu     sync.Mutex
	tokens domain.Tokens
	saved  bool
}

var _ domain.TokenStore = (*TokenStore)(nil)

// NewTokenStore creates an empty in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Load returns the held pair, zero when nothing was saved.
func (s *TokenStore) Load(ctx context.Context) (domain.Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.saved {
		return domain.Tokens{}, nil
	}
	return s.tokens, nil
}

// Save replaces the held pair.
func (s *TokenStore) Save(ctx context.Context, t domain.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = t
	s.saved = true
	return nil
}

// Clear drops the held pair.
func (s *TokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = domain.Tokens{}
	s.saved = false
	return nil
}

// ProfileCache is an in-memory domain.ProfileCache.
type ProfileCache struct {
	mu   sync.Mutex
	user *domain.User
}

var _ domain.ProfileCache = (*ProfileCache)(nil)

// NewProfileCache creates an empty in-memory profile cache.
func NewProfileCache() *ProfileCache {
	return &ProfileCache{}
}

// Load returns a copy of the cached user, nil when empty.
func (c *ProfileCache) Load() (*domain.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user.Clone(), nil
}

// Save stores a copy of the user.
func (c *ProfileCache) Save(u *domain.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = u.Clone()
	return nil
}

// Clear drops the cached user.
func (c *ProfileCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = nil
	return nil
}
