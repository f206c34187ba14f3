package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"recipebox/internal/catalog"
	"recipebox/internal/favorites"
	"recipebox/internal/narrator"
)

func newMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()
	catalog.NewServer(a.loader).Register(mux)
	favorites.NewServer(a.favorites).Register(mux)
	a.recipes.Register(mux)
	narrator.NewServer(a.cache).Register(mux)

	ro := &readyOnce{}
	ro.Add(ReadyFunc(a.Ready))
	mux.Handle("/ready", ro)
	return mux
}

func runServer(ctx context.Context, a *app, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           WithMiddleware(newMux(a)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("Serving recipebox", "address", addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
		return gracefulShutdown(server, a.narrator.Stop)
	}
}

func gracefulShutdown(svr *http.Server, stopNarration func()) error {
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	stopNarration()
	if err := svr.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown error", "error", err)
		if closeErr := svr.Close(); closeErr != nil {
			slog.Error("Server close error", "error", closeErr)
		}
		return err
	}
	return nil
}
