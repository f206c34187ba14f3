package cache

import (
	"context"
	"io"
	"strings"
	"sync"
)

// InMemoryCache keeps values for the life of the process. Used by tests and
// MOCKS runs where nothing should touch disk.
type InMemoryCache struct {
	entries sync.Map // string -> string
}

var _ Cache = (*InMemoryCache)(nil)

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{}
}

func (c *InMemoryCache) Get(_ context.Context, key string) (io.ReadCloser, error) {
	v, ok := c.entries.Load(key)
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(strings.NewReader(v.(string))), nil
}

func (c *InMemoryCache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := c.entries.Load(key)
	return ok, nil
}

// Put honors PutIfNoneMatch with LoadOrStore so racing writers see exactly one winner.
func (c *InMemoryCache) Put(_ context.Context, key, value string, opts PutOptions) error {
	if opts.Condition != PutIfNoneMatch {
		c.entries.Store(key, value)
		return nil
	}
	if _, loaded := c.entries.LoadOrStore(key, value); loaded {
		return ErrAlreadyExists
	}
	return nil
}

func (c *InMemoryCache) Delete(_ context.Context, key string) error {
	c.entries.Delete(key)
	return nil
}
