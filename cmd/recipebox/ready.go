package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
)

type Readyable interface {
	Ready(context.Context) error
}

type ReadyFunc func(context.Context) error

func (f ReadyFunc) Ready(ctx context.Context) error { return f(ctx) }

// readyOnce reports ready after every check has passed once.
type readyOnce struct {
	mu     sync.Mutex
	done   bool
	checks []Readyable
}

func (r *readyOnce) Ready(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return nil
	}
	for _, check := range r.checks {
		if err := check.Ready(ctx); err != nil {
			return err
		}
	}
	r.done = true
	return nil
}

func (r *readyOnce) Add(f ...Readyable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, f...)
}

func (r *readyOnce) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if err := r.Ready(req.Context()); err != nil {
		http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.ErrorContext(req.Context(), "failed to write readiness response", "error", err)
	}
}
