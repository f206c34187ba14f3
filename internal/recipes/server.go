package recipes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"recipebox/internal/cache"
	"recipebox/internal/credentials"
	"recipebox/internal/favorites"
	"recipebox/internal/narrator"
	"recipebox/internal/spoonacular"
)

type detailGetter interface {
	GetDetail(ctx context.Context, id int, apiKey string) (*spoonacular.RecipeDetail, error)
}

type keyStore interface {
	Get(ctx context.Context) (string, error)
}

type favoriteChecker interface {
	Contains(ctx context.Context, id int) (bool, error)
}

type reader interface {
	SpeakRecipe(ctx context.Context, d *spoonacular.RecipeDetail) (narrator.Status, error)
	Speaking() (int, bool)
	AudioFor(d *spoonacular.RecipeDetail) (string, bool)
}

type server struct {
	cache     cache.Cache
	api       detailGetter
	keys      keyStore
	favorites favoriteChecker
	narrator  reader
}

func NewHandler(api detailGetter, keys keyStore, favs favoriteChecker, n reader, c cache.Cache) *server {
	return &server{
		cache:     c,
		api:       api,
		keys:      keys,
		favorites: favs,
		narrator:  n,
	}
}

func (s *server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /recipe/{id}", s.handleSingle)
	mux.HandleFunc("POST /recipe/{id}/read", s.handleRead)
}

var errNoKey = errors.New("no api key")

// Detail fetches a recipe with the stored key. Details live only as long as
// the view that asked for them.
func (s *server) Detail(ctx context.Context, id int) (*spoonacular.RecipeDetail, error) {
	key, err := s.keys.Get(ctx)
	if errors.Is(err, credentials.ErrNoKey) {
		return nil, errNoKey
	}
	if err != nil {
		return nil, err
	}
	return s.api.GetDetail(ctx, id, key)
}

func (s *server) handleSingle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		http.Error(w, "invalid recipe id", http.StatusBadRequest)
		return
	}

	detail, err := s.Detail(ctx, id)
	if errors.Is(err, errNoKey) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to load recipe", "id", id, "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, spoonacular.ErrNotFound) {
			status = http.StatusNotFound
		}
		FormatRecipeHTML(w, status, page{Failed: true})
		return
	}

	favorite, err := s.favorites.Contains(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to check favorites", "id", id, "error", err)
	}
	speakingID, speaking := s.narrator.Speaking()
	p := page{
		Recipe:   detail,
		Favorite: favorite,
		Speaking: speaking && speakingID == id,
		Message:  message(r),
	}
	if hash, ok := s.narrator.AudioFor(detail); ok {
		if exists, err := s.cache.Exists(ctx, narrator.AudioKey(hash)); err == nil && exists {
			p.Audio = "/narration/" + hash
		}
	}
	slog.InfoContext(ctx, "serving recipe", "id", id)
	FormatRecipeHTML(w, http.StatusOK, p)
}

func (s *server) handleRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		http.Error(w, "invalid recipe id", http.StatusBadRequest)
		return
	}
	target := "/recipe/" + strconv.Itoa(id)

	detail, err := s.Detail(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load recipe for reading", "id", id, "error", err)
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	status, err := s.narrator.SpeakRecipe(ctx, detail)
	if err != nil {
		slog.ErrorContext(ctx, "failed to toggle narration", "id", id, "error", err)
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, target+"?read="+status.String(), http.StatusSeeOther)
}

func message(r *http.Request) string {
	q := r.URL.Query()
	if n, err := strconv.Atoi(q.Get("msg")); err == nil {
		switch d := favorites.Direction(n); d {
		case favorites.Added, favorites.Removed:
			return d.String()
		}
	}
	switch q.Get("read") {
	case narrator.Started.String():
		return "Reading recipe aloud."
	case narrator.Stopped.String():
		return "Stopped reading."
	}
	return ""
}
