// Package securestore implements the secure token store port as encrypted
// files on disk. Each entry is AES-256-GCM sealed with a key derived from
// the device secret via argon2id, so a copied data directory is useless
// without the secret.
package securestore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"petsession/internal/domain"

	"golang.org/x/crypto/argon2"
)

// Fixed entry identifiers; the persisted layout is two entries, one per
// token half.
const (
	accessTokenKey  = "auth.access_token"
	refreshTokenKey = "auth.refresh_token"
)

// argon2id parameters for deriving the sealing key on consumer hardware.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// Store is a file-backed domain.TokenStore.
type Store struct {
	dir    string
	secret string
}

var _ domain.TokenStore = (*Store)(nil)

// New creates the store rooted at dir, creating it if needed.
func New(dir, secret string) (*Store, error) {
	if secret == "" {
		return nil, errors.New("securestore: empty device secret")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("securestore: %w", err)
	}
	return &Store{dir: dir, secret: secret}, nil
}

// Load reads both token entries. Missing entries yield a zero value, not
// an error; a half-written pair is returned as-is and the caller decides.
func (s *Store) Load(ctx context.Context) (domain.Tokens, error) {
	access, err := s.get(accessTokenKey)
	if err != nil {
		return domain.Tokens{}, err
	}
	refresh, err := s.get(refreshTokenKey)
	if err != nil {
		return domain.Tokens{}, err
	}
	return domain.Tokens{Access: access, Refresh: refresh}, nil
}

// Save persists both entries, overwriting previous values.
func (s *Store) Save(ctx context.Context, t domain.Tokens) error {
	if err := s.put(accessTokenKey, t.Access); err != nil {
		return err
	}
	return s.put(refreshTokenKey, t.Refresh)
}

// Clear removes both entries. Absent entries are not an error.
func (s *Store) Clear(ctx context.Context) error {
	for _, key := range []string{accessTokenKey, refreshTokenKey} {
		if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("securestore: %w", err)
		}
	}
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key)
}

func (s *Store) get(key string) (string, error) {
	raw, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("securestore: %w", err)
	}
	plain, err := s.open(raw)
	if err != nil {
		return "", fmt.Errorf("securestore: %s: %w", key, err)
	}
	return string(plain), nil
}

func (s *Store) put(key, value string) error {
	sealed, err := s.seal([]byte(value))
	if err != nil {
		return fmt.Errorf("securestore: %s: %w", key, err)
	}
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("securestore: %w", err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("securestore: %w", err)
	}
	return nil
}

// seal encrypts plaintext as [salt][nonce][ciphertext+tag]. A fresh salt
// per write keeps derived keys independent across entries.
func (s *Store) seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	out := append(salt, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// open reverses seal.
func (s *Store) open(sealed []byte) ([]byte, error) {
	if len(sealed) < saltLen {
		return nil, errors.New("entry too short")
	}
	salt, rest := sealed[:saltLen], sealed[saltLen:]
	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize() {
		return nil, errors.New("entry too short")
	}
	nonce, ct := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ct, nil)
}

func (s *Store) aead(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(s.secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
