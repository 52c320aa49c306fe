// Package profilecache persists the last-known user record as a JSON file
// so the UI has something to render before the network responds.
package profilecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"petsession/internal/domain"
)

// cacheKey names the single snapshot entry inside the cache file.
const cacheKey = "cached_user"

// Cache is a file-backed domain.ProfileCache.
type Cache struct {
	path string
}

var _ domain.ProfileCache = (*Cache)(nil)

// New creates a cache at the given file path.
func New(path string) *Cache {
	return &Cache{path: path}
}

type envelope struct {
	Key  string      `json:"key"`
	User *cachedUser `json:"user"`
}

// cachedUser is the serialized snapshot shape. Kept separate from
// domain.User so the on-disk format can evolve independently.
type cachedUser struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Name      string   `json:"name,omitempty"`
	AvatarURL string   `json:"avatarUrl,omitempty"`
	Verified  bool     `json:"verified"`
	Phone     string   `json:"phone,omitempty"`
	Country   string   `json:"country,omitempty"`
	City      string   `json:"city,omitempty"`
	PetIDs    []string `json:"petIds,omitempty"`
	Role      string   `json:"role,omitempty"`
	HasPhoto  *bool    `json:"hasPhoto,omitempty"`
	HasPets   *bool    `json:"hasPets,omitempty"`
}

// Load reads the snapshot. Returns (nil, nil) when no snapshot exists or
// when the file cannot be parsed; a corrupt cache is treated as absent
// rather than fatal since it only seeds optimistic UI.
func (c *Cache) Load() (*domain.User, error) {
	raw, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profilecache: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.User == nil {
		return nil, nil
	}
	u := env.User
	return &domain.User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Verified:  u.Verified,
		Phone:     u.Phone,
		Country:   u.Country,
		City:      u.City,
		PetIDs:    u.PetIDs,
		Role:      domain.Role(u.Role),
		HasPhoto:  u.HasPhoto,
		HasPets:   u.HasPets,
	}, nil
}

// Save writes the snapshot atomically (temp file + rename).
func (c *Cache) Save(u *domain.User) error {
	if u == nil {
		return c.Clear()
	}
	env := envelope{
		Key: cacheKey,
		User: &cachedUser{
			ID:        u.ID,
			Email:     u.Email,
			Name:      u.Name,
			AvatarURL: u.AvatarURL,
			Verified:  u.Verified,
			Phone:     u.Phone,
			Country:   u.Country,
			City:      u.City,
			PetIDs:    u.PetIDs,
			Role:      string(u.Role),
			HasPhoto:  u.HasPhoto,
			HasPets:   u.HasPets,
		},
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("profilecache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("profilecache: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("profilecache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("profilecache: %w", err)
	}
	return nil
}

// Clear removes the snapshot file.
func (c *Cache) Clear() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("profilecache: %w", err)
	}
	return nil
}
