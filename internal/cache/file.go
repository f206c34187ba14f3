package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockFileName = ".recipebox.lock"

// FileCache stores one file per key under Dir. Writers hold mu within the
// process and an flock on the directory across processes sharing a data dir.
type FileCache struct {
	Dir  string
	mu   sync.Mutex
	lock *flock.Flock
}

var _ Cache = (*FileCache)(nil)

func NewFileCache(dir string) *FileCache {
	return &FileCache{
		Dir:  dir,
		lock: flock.New(filepath.Join(dir, lockFileName)),
	}
}

func (fc *FileCache) path(key string) string {
	return filepath.Join(fc.Dir, filepath.FromSlash(key))
}

func (fc *FileCache) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(fc.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (fc *FileCache) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(fc.path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (fc *FileCache) Put(ctx context.Context, key, value string, opts PutOptions) error {
	unlock, err := fc.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	filePath := fc.path(key)
	if opts.Condition == PutIfNoneMatch {
		if _, err := os.Stat(filePath); err == nil {
			return ErrAlreadyExists
		}
	}
	// Create parent directories if they don't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filePath)
}

func (fc *FileCache) Delete(ctx context.Context, key string) error {
	unlock, err := fc.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(fc.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// acquire serializes writers. The flock handle is shared, and flock treats a
// second lock through it as already held, so goroutines queue on mu first.
func (fc *FileCache) acquire(ctx context.Context) (func(), error) {
	fc.mu.Lock()
	if err := os.MkdirAll(fc.Dir, 0755); err != nil {
		fc.mu.Unlock()
		return nil, err
	}
	ok, err := fc.lock.TryLockContext(ctx, 10*time.Millisecond)
	if err == nil && !ok {
		err = errors.New("not acquired")
	}
	if err != nil {
		fc.mu.Unlock()
		return nil, fmt.Errorf("lock %s: %w", fc.lock.Path(), err)
	}
	return func() {
		_ = fc.lock.Unlock()
		fc.mu.Unlock()
	}, nil
}
