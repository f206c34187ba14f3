package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"recipebox/internal/cache"
	"recipebox/internal/catalog"
	"recipebox/internal/config"
	"recipebox/internal/credentials"
	"recipebox/internal/favorites"
	"recipebox/internal/narrator"
	"recipebox/internal/recipes"
	"recipebox/internal/spoonacular"
)

// app is everything both the server and the one-shot commands need.
type app struct {
	cfg       *config.Config
	cache     cache.Cache
	keys      *credentials.Store
	api       spoonacular.API
	loader    *catalog.Loader
	favorites *favorites.Manager
	speaker   narrator.Speaker
	narrator  *narrator.Narrator
	recipes   interface {
		Detail(ctx context.Context, id int) (*spoonacular.RecipeDetail, error)
		Register(mux *http.ServeMux)
	}
}

func newApp(cfg *config.Config) (*app, error) {
	c, err := cache.MakeCache(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	keys, err := credentials.New(c, cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}
	api, err := spoonacular.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create recipe client: %w", err)
	}
	speaker, err := narrator.NewSpeaker(cfg.Speech, cfg.Mocks.Enable, c)
	if err != nil {
		return nil, fmt.Errorf("failed to create speaker: %w", err)
	}

	a := &app{
		cfg:       cfg,
		cache:     c,
		keys:      keys,
		api:       api,
		loader:    catalog.NewLoader(api, keys, catalog.WithConcurrentFetch(cfg.Catalog.Concurrent)),
		favorites: favorites.NewManager(c),
		speaker:   speaker,
		narrator:  narrator.New(speaker, narrator.Options{Language: cfg.Speech.Language, Rate: cfg.Speech.Rate}),
	}
	a.recipes = recipes.NewHandler(api, keys, a.favorites, a.narrator, c)
	return a, nil
}

// Close releases backends that hold connections.
func (a *app) Close() {
	a.narrator.Stop()
	if closer, ok := a.cache.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			slog.Error("failed to close storage", "error", err)
		}
	}
}

// Ready checks that the store answers.
func (a *app) Ready(ctx context.Context) error {
	if _, err := a.cache.Exists(ctx, credentials.APIKeyName); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

var errNeedsKey = errors.New("no usable api key; run with -key <key>")
