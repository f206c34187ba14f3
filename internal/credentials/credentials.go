// Package credentials keeps the Spoonacular API key, encrypted with age,
// in the same key-value store that holds favorites.
package credentials

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"

	"recipebox/internal/cache"
	"recipebox/internal/config"
)

// APIKeyName is the fixed store key holding the raw API key.
const APIKeyName = "SPOONACULAR_API_KEY"

var (
	ErrNoKey   = errors.New("no api key stored")
	ErrStorage = errors.New("credential storage failure")
)

type Store struct {
	cache     cache.Cache
	recipient age.Recipient
	identity  age.Identity
}

// New builds a store. A passphrase selects scrypt encryption; otherwise an
// X25519 identity is loaded from identityPath, generated on first use.
func New(c cache.Cache, cfg config.CredentialsConfig) (*Store, error) {
	if cfg.Passphrase != "" {
		r, err := age.NewScryptRecipient(cfg.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("scrypt recipient: %w", err)
		}
		i, err := age.NewScryptIdentity(cfg.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("scrypt identity: %w", err)
		}
		return &Store{cache: c, recipient: r, identity: i}, nil
	}

	identity, err := loadOrCreateIdentity(cfg.IdentityPath)
	if err != nil {
		return nil, err
	}
	return NewWithIdentity(c, identity), nil
}

func NewWithIdentity(c cache.Cache, identity *age.X25519Identity) *Store {
	return &Store{cache: c, recipient: identity.Recipient(), identity: identity}
}

// Get returns the stored key, or ErrNoKey when none is stored.
func (s *Store) Get(ctx context.Context) (string, error) {
	rc, err := s.cache.Get(ctx, APIKeyName)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return "", ErrNoKey
		}
		return "", fmt.Errorf("%w: read: %w", ErrStorage, err)
	}
	defer func() {
		if err := rc.Close(); err != nil {
			slog.ErrorContext(ctx, "failed to close credential reader", "error", err)
		}
	}()

	plain, err := age.Decrypt(armor.NewReader(rc), s.identity)
	if err != nil {
		return "", fmt.Errorf("%w: decrypt: %w", ErrStorage, err)
	}
	key, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("%w: decrypt: %w", ErrStorage, err)
	}
	if len(key) == 0 {
		return "", ErrNoKey
	}
	return string(key), nil
}

// Set overwrites the stored key.
func (s *Store) Set(ctx context.Context, key string) error {
	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)
	w, err := age.Encrypt(aw, s.recipient)
	if err != nil {
		return fmt.Errorf("%w: encrypt: %w", ErrStorage, err)
	}
	if _, err := io.WriteString(w, key); err != nil {
		return fmt.Errorf("%w: encrypt: %w", ErrStorage, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: encrypt: %w", ErrStorage, err)
	}
	if err := aw.Close(); err != nil {
		return fmt.Errorf("%w: armor: %w", ErrStorage, err)
	}
	if err := s.cache.Put(ctx, APIKeyName, buf.String(), cache.Unconditional()); err != nil {
		return fmt.Errorf("%w: write: %w", ErrStorage, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.cache.Delete(ctx, APIKeyName); err != nil {
		return fmt.Errorf("%w: delete: %w", ErrStorage, err)
	}
	return nil
}

func loadOrCreateIdentity(path string) (*age.X25519Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("parse identity %s: %w", path, err)
		}
		return identity, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read identity %s: %w", path, err)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create identity dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(identity.String()+"\n"), 0600); err != nil {
		return nil, fmt.Errorf("write identity %s: %w", path, err)
	}
	slog.Info("generated credential identity", "path", path)
	return identity, nil
}
