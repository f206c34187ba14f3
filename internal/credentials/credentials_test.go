package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recipebox/internal/cache"
	"recipebox/internal/config"
)

func TestRoundTripIsEncrypted(t *testing.T) {
	ctx := context.Background()
	store := cache.NewInMemoryCache()
	creds, err := New(store, config.CredentialsConfig{IdentityPath: filepath.Join(t.TempDir(), "identity.txt")})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if _, err := creds.Get(ctx); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey on empty store, got %v", err)
	}

	if err := creds.Set(ctx, "abc123secret"); err != nil {
		t.Fatalf("set: %v", err)
	}
	raw, err := cache.GetString(ctx, store, APIKeyName)
	if err != nil {
		t.Fatalf("raw read: %v", err)
	}
	if strings.Contains(raw, "abc123secret") {
		t.Fatal("api key stored in plaintext")
	}
	if !strings.Contains(raw, "BEGIN AGE ENCRYPTED FILE") {
		t.Fatalf("expected armored age payload, got %q", raw)
	}

	got, err := creds.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "abc123secret" {
		t.Fatalf("unexpected key %q", got)
	}

	if err := creds.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := creds.Get(ctx); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey after clear, got %v", err)
	}
}

func TestIdentityPersistsAcrossStores(t *testing.T) {
	ctx := context.Background()
	store := cache.NewFileCache(t.TempDir())
	cfg := config.CredentialsConfig{IdentityPath: filepath.Join(t.TempDir(), "keys", "identity.txt")}

	first, err := New(store, cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := first.Set(ctx, "persisted"); err != nil {
		t.Fatalf("set: %v", err)
	}

	info, err := os.Stat(cfg.IdentityPath)
	if err != nil {
		t.Fatalf("identity file not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("identity file mode %v, want 0600", info.Mode().Perm())
	}

	second, err := New(store, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := second.Get(ctx)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got != "persisted" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestPassphrase(t *testing.T) {
	ctx := context.Background()
	store := cache.NewInMemoryCache()

	creds, err := New(store, config.CredentialsConfig{Passphrase: "correct horse"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := creds.Set(ctx, "k"); err != nil {
		t.Fatalf("set: %v", err)
	}

	wrong, err := New(store, config.CredentialsConfig{Passphrase: "battery staple"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := wrong.Get(ctx); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage with wrong passphrase, got %v", err)
	}
}
