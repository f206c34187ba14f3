package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"recipebox/internal/credentials"
	"recipebox/internal/spoonacular"
)

var ErrValidation = errors.New("api key must not be blank")

type State int

const (
	Idle State = iota
	Loading
	Loaded
	NeedsKey
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case NeedsKey:
		return "needs_key"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Searcher interface {
	SearchByCategory(ctx context.Context, query, apiKey string) ([]spoonacular.RecipeSummary, error)
}

// KeyStore is the persisted API key. Get returns credentials.ErrNoKey when nothing is stored.
type KeyStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

type Snapshot struct {
	State      State
	Result     *Result
	ShowPrompt bool
	Err        error
	LoadedAt   time.Time
}

// Loader fetches every category with one key and decides whether the user
// has to be asked for a new one.
type Loader struct {
	searcher   Searcher
	keys       KeyStore
	categories []Category
	concurrent bool

	mu         sync.Mutex
	state      State
	result     *Result
	prompt     bool
	lastErr    error
	loadedAt   time.Time
	apiKey     string
	generation uint64
}

type Option func(*Loader)

// WithCategories replaces DefaultCategories.
func WithCategories(c []Category) Option {
	return func(l *Loader) { l.categories = c }
}

// WithConcurrentFetch fetches all categories at once instead of one by one.
func WithConcurrentFetch(on bool) Option {
	return func(l *Loader) { l.concurrent = on }
}

func NewLoader(searcher Searcher, keys KeyStore, opts ...Option) *Loader {
	l := &Loader{
		searcher:   searcher,
		keys:       keys,
		categories: DefaultCategories,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Start loads with the stored key, or asks for one without touching the network.
func (l *Loader) Start(ctx context.Context) error {
	key, err := l.storedKey(ctx)
	if err != nil {
		l.needKey(err)
		return nil
	}
	if key == "" {
		l.needKey(nil)
		return nil
	}
	return l.load(ctx, key)
}

// StartOnce runs Start only for the first caller that finds the loader Idle.
// It reports whether this call did the start.
func (l *Loader) StartOnce(ctx context.Context) (bool, error) {
	l.mu.Lock()
	if l.state != Idle {
		l.mu.Unlock()
		return false, nil
	}
	l.state = Loading
	l.mu.Unlock()
	return true, l.Start(ctx)
}

// Refresh reloads with the current key. Without one it only shows the prompt.
func (l *Loader) Refresh(ctx context.Context) error {
	l.mu.Lock()
	key := l.apiKey
	l.mu.Unlock()
	if key == "" {
		var err error
		if key, err = l.storedKey(ctx); err != nil {
			l.needKey(err)
			return nil
		}
	}
	if key == "" {
		l.needKey(nil)
		return nil
	}
	return l.load(ctx, key)
}

// SubmitKey validates a key typed by the user by loading the catalog with it.
// The key is only persisted when that load succeeds.
func (l *Loader) SubmitKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrValidation
	}
	return l.load(ctx, key)
}

// ClearKey forgets the key everywhere so the next screen asks for a new one.
func (l *Loader) ClearKey(ctx context.Context) error {
	err := l.keys.Clear(ctx)
	l.mu.Lock()
	l.apiKey = ""
	l.state = NeedsKey
	l.prompt = true
	l.mu.Unlock()
	if err != nil {
		slog.ErrorContext(ctx, "failed to clear stored api key", "error", err)
		return err
	}
	slog.InfoContext(ctx, "cleared api key")
	return nil
}

func (l *Loader) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		State:      l.state,
		Result:     l.result,
		ShowPrompt: l.prompt,
		Err:        l.lastErr,
		LoadedAt:   l.loadedAt,
	}
}

func (l *Loader) storedKey(ctx context.Context) (string, error) {
	key, err := l.keys.Get(ctx)
	if errors.Is(err, credentials.ErrNoKey) {
		return "", nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to read stored api key", "error", err)
		return "", err
	}
	return strings.TrimSpace(key), nil
}

func (l *Loader) needKey(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = NeedsKey
	l.prompt = true
	l.lastErr = err
}

func (l *Loader) load(ctx context.Context, key string) error {
	l.mu.Lock()
	l.generation++
	gen := l.generation
	l.state = Loading
	l.mu.Unlock()

	start := time.Now()
	result, err := l.fetch(ctx, key)

	l.mu.Lock()
	if gen != l.generation {
		l.mu.Unlock()
		slog.InfoContext(ctx, "discarding superseded catalog load", "generation", gen)
		return err
	}
	if err != nil {
		l.state = NeedsKey
		l.prompt = true
		l.lastErr = err
		l.mu.Unlock()
		slog.ErrorContext(ctx, "catalog load failed", "error", err, "duration", time.Since(start))
		return err
	}
	l.state = Loaded
	l.result = result
	l.prompt = false
	l.lastErr = nil
	l.loadedAt = time.Now()
	l.apiKey = key
	l.mu.Unlock()

	slog.InfoContext(ctx, "catalog loaded", "sections", len(result.Sections), "duration", time.Since(start))
	if err := l.keys.Set(ctx, key); err != nil {
		// the catalog is usable; the key just has to be entered again next time
		slog.ErrorContext(ctx, "failed to persist api key", "error", err)
	}
	return nil
}

func (l *Loader) fetch(ctx context.Context, key string) (*Result, error) {
	sections := make([]Section, len(l.categories))
	if !l.concurrent {
		for i, c := range l.categories {
			recipes, err := l.searcher.SearchByCategory(ctx, c.Query, key)
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", c.Label, err)
			}
			sections[i] = Section{Label: c.Label, Recipes: recipes}
		}
		return &Result{Sections: sections}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range l.categories {
		g.Go(func() error {
			recipes, err := l.searcher.SearchByCategory(gctx, c.Query, key)
			if err != nil {
				return fmt.Errorf("load %s: %w", c.Label, err)
			}
			sections[i] = Section{Label: c.Label, Recipes: recipes}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Result{Sections: sections}, nil
}
