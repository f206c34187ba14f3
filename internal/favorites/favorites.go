package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"recipebox/internal/cache"
	"recipebox/internal/spoonacular"
)

// StorageKey holds the whole favorites list as one JSON array.
const StorageKey = "favorites"

var ErrStorage = errors.New("favorites storage failure")

type List []spoonacular.RecipeSummary

type Direction int

const (
	Added Direction = iota + 1
	Removed
)

func (d Direction) String() string {
	switch d {
	case Added:
		return "Added to Favorites"
	case Removed:
		return "Removed from Favorites"
	default:
		return "unchanged"
	}
}

// Manager owns every write to the favorites key. Its mutex serializes the
// read-modify-write cycles of this process; other writers are last-writer-wins.
type Manager struct {
	mu    sync.Mutex
	cache cache.Cache
}

func NewManager(c cache.Cache) *Manager {
	return &Manager{cache: c}
}

// List returns the stored favorites; a missing key is an empty list.
func (m *Manager) List(ctx context.Context) (List, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx)
}

func (m *Manager) Contains(ctx context.Context, id int) (bool, error) {
	list, err := m.List(ctx)
	if err != nil {
		return false, err
	}
	return lo.ContainsBy(list, func(r spoonacular.RecipeSummary) bool { return r.ID == id }), nil
}

// Toggle removes the recipe if an entry with its id exists, otherwise appends it.
func (m *Manager) Toggle(ctx context.Context, recipe spoonacular.RecipeSummary) (List, Direction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.load(ctx)
	if err != nil {
		return nil, 0, err
	}

	var (
		updated   List
		direction Direction
	)
	if _, exists := lo.Find(list, func(r spoonacular.RecipeSummary) bool { return r.ID == recipe.ID }); exists {
		updated = lo.Reject(list, func(r spoonacular.RecipeSummary, _ int) bool { return r.ID == recipe.ID })
		direction = Removed
	} else {
		updated = append(append(List{}, list...), recipe)
		direction = Added
	}

	if err := m.save(ctx, updated); err != nil {
		return nil, 0, err
	}
	slog.InfoContext(ctx, "toggled favorite", "id", recipe.ID, "title", recipe.Title, "direction", direction.String())
	return updated, direction, nil
}

// Remove drops the entry with id. Removing an absent id rewrites the list unchanged.
func (m *Manager) Remove(ctx context.Context, id int) (List, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	updated := List(lo.Reject(list, func(r spoonacular.RecipeSummary, _ int) bool { return r.ID == id }))
	if err := m.save(ctx, updated); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "removed favorite", "id", id)
	return updated, nil
}

func (m *Manager) load(ctx context.Context) (List, error) {
	rc, err := m.cache.Get(ctx, StorageKey)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return List{}, nil
		}
		return nil, fmt.Errorf("%w: read: %w", ErrStorage, err)
	}
	defer func() {
		if err := rc.Close(); err != nil {
			slog.ErrorContext(ctx, "failed to close favorites reader", "error", err)
		}
	}()

	var list List
	if err := json.NewDecoder(rc).Decode(&list); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrStorage, err)
	}
	// another writer may have stored duplicates; first occurrence wins
	return lo.UniqBy(list, func(r spoonacular.RecipeSummary) int { return r.ID }), nil
}

func (m *Manager) save(ctx context.Context, list List) error {
	if list == nil {
		list = List{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrStorage, err)
	}
	if err := m.cache.Put(ctx, StorageKey, string(b), cache.Unconditional()); err != nil {
		return fmt.Errorf("%w: write: %w", ErrStorage, err)
	}
	return nil
}
