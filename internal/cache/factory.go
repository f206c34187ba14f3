package cache

import (
	"fmt"
	"log/slog"

	"recipebox/internal/config"
)

// MakeCache builds the configured backend.
func MakeCache(cfg config.StorageConfig) (Cache, error) {
	switch cfg.Backend {
	case "memory":
		slog.Info("Using in-memory storage; nothing survives a restart")
		return NewInMemoryCache(), nil
	case "blob":
		slog.Info("Using Azure Blob Storage", "container", cfg.BlobContainer)
		return NewBlobCache(cfg.BlobAccountName, cfg.BlobAccountKey, cfg.BlobContainer)
	case "sqlite":
		slog.Info("Using SQLite storage", "path", cfg.SQLitePath)
		return NewSQLiteCache(cfg.SQLitePath)
	case "redis":
		return NewRedisCache(cfg.RedisURL)
	case "file", "":
		slog.Info("Using file storage", "dir", cfg.Dir)
		return NewFileCache(cfg.Dir), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
