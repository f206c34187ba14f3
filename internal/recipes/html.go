package recipes

import (
	"log/slog"
	"net/http"

	"recipebox/internal/spoonacular"
	"recipebox/internal/templates"
)

type page struct {
	Recipe   *spoonacular.RecipeDetail
	Failed   bool
	Favorite bool
	Speaking bool
	Audio    string
	Message  string
}

// FormatRecipeHTML renders the detail page, or the clear-key modal when Failed is set.
func FormatRecipeHTML(w http.ResponseWriter, status int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.Recipe.Execute(w, p); err != nil {
		slog.Error("recipe template error", "error", err)
	}
}
