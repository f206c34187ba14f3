package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"recipebox/internal/spoonacular"
	"recipebox/internal/templates"
)

type server struct {
	loader *Loader
}

func NewServer(l *Loader) *server {
	return &server{loader: l}
}

func (s *server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("POST /apikey", s.handleSubmitKey)
	mux.HandleFunc("POST /apikey/clear", s.handleClearKey)
}

func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	// a closed browser tab should not abort the first load
	_, _ = s.loader.StartOnce(context.WithoutCancel(r.Context()))
	s.render(w, s.loader.Snapshot(), "", http.StatusOK)
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	_ = s.loader.Refresh(context.WithoutCancel(r.Context()))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) handleSubmitKey(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	err := s.loader.SubmitKey(context.WithoutCancel(r.Context()), r.FormValue("apikey"))
	if errors.Is(err, ErrValidation) {
		snap := s.loader.Snapshot()
		snap.ShowPrompt = true
		s.render(w, snap, "Please enter an API key.", http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) handleClearKey(w http.ResponseWriter, r *http.Request) {
	if err := s.loader.ClearKey(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "clear key failed", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) render(w http.ResponseWriter, snap Snapshot, message string, status int) {
	var sections []Section
	if snap.Result != nil {
		sections = snap.Result.Sections
	}
	if message == "" && snap.ShowPrompt {
		message = Describe(snap.Err)
	}
	data := struct {
		ShowPrompt bool
		Error      string
		Sections   []Section
		LoadedAt   time.Time
	}{
		ShowPrompt: snap.ShowPrompt,
		Error:      message,
		Sections:   sections,
		LoadedAt:   snap.LoadedAt,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.Home.Execute(w, data); err != nil {
		slog.Error("home template error", "error", err)
	}
}

// Describe turns a load failure into something to show next to the key prompt.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, spoonacular.ErrAuth):
		return "The API key was rejected or its daily quota is used up."
	case errors.Is(err, spoonacular.ErrNotFound):
		return "Spoonacular could not find what was asked for."
	case errors.Is(err, spoonacular.ErrTransport):
		return "Recipes could not be loaded. Check the connection and try again."
	default:
		return "Recipes could not be loaded."
	}
}
