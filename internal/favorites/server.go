package favorites

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"recipebox/internal/spoonacular"
	"recipebox/internal/templates"
)

type server struct {
	manager *Manager
}

func NewServer(m *Manager) *server {
	return &server{manager: m}
}

func (s *server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /favorites", s.handleList)
	mux.HandleFunc("POST /favorites/toggle", s.handleToggle)
	mux.HandleFunc("POST /favorites/{id}/remove", s.handleRemove)
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := s.manager.List(ctx)
	message := ""
	if err != nil {
		// browsing continues with an empty list
		slog.ErrorContext(ctx, "failed to load favorites", "error", err)
		list = List{}
		message = "Favorites could not be loaded."
	}
	data := struct {
		Favorites List
		Error     string
	}{
		Favorites: list,
		Error:     message,
	}
	if err := templates.Favorites.Execute(w, data); err != nil {
		http.Error(w, "favorites template error: "+err.Error(), http.StatusInternalServerError)
	}
}

func (s *server) handleToggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	id, err := strconv.Atoi(r.FormValue("id"))
	if err != nil {
		http.Error(w, "invalid recipe id", http.StatusBadRequest)
		return
	}
	recipe := spoonacular.RecipeSummary{
		ID:    id,
		Title: strings.TrimSpace(r.FormValue("title")),
		Image: strings.TrimSpace(r.FormValue("image")),
	}

	_, direction, err := s.manager.Toggle(ctx, recipe)
	target := "/recipe/" + strconv.Itoa(id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to toggle favorite", "id", id, "error", err)
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, target+"?msg="+strconv.Itoa(int(direction)), http.StatusSeeOther)
}

func (s *server) handleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid recipe id", http.StatusBadRequest)
		return
	}
	if _, err := s.manager.Remove(ctx, id); err != nil {
		slog.ErrorContext(ctx, "failed to remove favorite", "id", id, "error", err)
	}
	http.Redirect(w, r, "/favorites", http.StatusSeeOther)
}
