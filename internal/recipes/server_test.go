package recipes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"recipebox/internal/cache"
	"recipebox/internal/credentials"
	"recipebox/internal/favorites"
	"recipebox/internal/narrator"
	"recipebox/internal/spoonacular"
	"recipebox/internal/templates"
)

type fakeAPI struct {
	calls int
	err   error
}

func (f *fakeAPI) GetDetail(_ context.Context, id int, apiKey string) (*spoonacular.RecipeDetail, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &spoonacular.RecipeDetail{
		ID:      id,
		Title:   "Pasta for " + apiKey,
		Summary: "<b>Quick</b> dinner",
		AnalyzedInstructions: []spoonacular.InstructionSet{{Steps: []spoonacular.Step{
			{Number: 1, Step: "Boil water"},
		}}},
	}, nil
}

type staticKey string

func (k staticKey) Get(context.Context) (string, error) {
	if k == "" {
		return "", credentials.ErrNoKey
	}
	return string(k), nil
}

type stubNarrator struct {
	toggles int
	id      int
}

func (s *stubNarrator) SpeakRecipe(_ context.Context, d *spoonacular.RecipeDetail) (narrator.Status, error) {
	s.toggles++
	if s.id != 0 {
		s.id = 0
		return narrator.Stopped, nil
	}
	s.id = d.ID
	return narrator.Started, nil
}

func (s *stubNarrator) Speaking() (int, bool) { return s.id, s.id != 0 }

func (s *stubNarrator) AudioFor(*spoonacular.RecipeDetail) (string, bool) { return "", false }

func setup(t *testing.T, api *fakeAPI, key string) (*http.ServeMux, *favorites.Manager, *stubNarrator) {
	t.Helper()
	if err := templates.Init(); err != nil {
		t.Fatalf("templates: %v", err)
	}
	c := cache.NewInMemoryCache()
	favs := favorites.NewManager(c)
	n := &stubNarrator{}
	mux := http.NewServeMux()
	NewHandler(api, staticKey(key), favs, n, c).Register(mux)
	return mux, favs, n
}

func get(mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestSingleRendersDetail(t *testing.T) {
	api := &fakeAPI{}
	mux, _, _ := setup(t, api, "k")

	rr := get(mux, "/recipe/42")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Pasta for k", "Quick dinner", "Boil water", "Add to Favorites", "Read Recipe"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in page", want)
		}
	}

	get(mux, "/recipe/42")
	if api.calls != 2 {
		t.Fatalf("expected every visit to fetch the detail, got %d calls", api.calls)
	}
}

type switchKey struct{ key string }

func (k *switchKey) Get(context.Context) (string, error) {
	if k.key == "" {
		return "", credentials.ErrNoKey
	}
	return k.key, nil
}

func TestSecondVisitSeesKeyChanges(t *testing.T) {
	if err := templates.Init(); err != nil {
		t.Fatalf("templates: %v", err)
	}
	c := cache.NewInMemoryCache()
	api := &fakeAPI{}
	keys := &switchKey{key: "k"}
	mux := http.NewServeMux()
	NewHandler(api, keys, favorites.NewManager(c), &stubNarrator{}, c).Register(mux)

	if rr := get(mux, "/recipe/42"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	api.err = &spoonacular.StatusError{Operation: "information", StatusCode: 401}
	rr := get(mux, "/recipe/42")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 once the key is rejected, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `action="/apikey/clear"`) {
		t.Fatalf("expected clear key modal after rejected key")
	}

	api.err = nil
	keys.key = ""
	rr = get(mux, "/recipe/42")
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect home after key was cleared, got %d %s", rr.Code, rr.Header().Get("Location"))
	}
	if api.calls != 2 {
		t.Fatalf("expected no fetch without a key, got %d calls", api.calls)
	}
}

func TestSingleShowsFavoriteState(t *testing.T) {
	mux, favs, _ := setup(t, &fakeAPI{}, "k")
	if _, _, err := favs.Toggle(t.Context(), spoonacular.RecipeSummary{ID: 42, Title: "Pasta"}); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	rr := get(mux, "/recipe/42?msg=1")
	body := rr.Body.String()
	if !strings.Contains(body, "Remove from Favorites") || !strings.Contains(body, "Added to Favorites") {
		t.Fatalf("expected favorite state and message, got %s", body)
	}
}

func TestSingleFailureShowsClearKeyModal(t *testing.T) {
	mux, _, _ := setup(t, &fakeAPI{err: &spoonacular.StatusError{Operation: "information", StatusCode: 402}}, "k")
	rr := get(mux, "/recipe/42")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `action="/apikey/clear"`) {
		t.Fatalf("expected clear key modal")
	}

	mux, _, _ = setup(t, &fakeAPI{err: &spoonacular.StatusError{Operation: "information", StatusCode: 404}}, "k")
	if rr := get(mux, "/recipe/7"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestSingleWithoutKeyRedirectsHome(t *testing.T) {
	api := &fakeAPI{}
	mux, _, _ := setup(t, api, "")
	rr := get(mux, "/recipe/42")
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect home, got %d %s", rr.Code, rr.Header().Get("Location"))
	}
	if api.calls != 0 {
		t.Fatalf("expected no api call without a key")
	}
}

func TestSingleRejectsBadID(t *testing.T) {
	mux, _, _ := setup(t, &fakeAPI{}, "k")
	if rr := get(mux, "/recipe/abc"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestReadToggles(t *testing.T) {
	mux, _, n := setup(t, &fakeAPI{}, "k")

	post := func() *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/recipe/42/read", nil))
		return rr
	}

	rr := post()
	if rr.Header().Get("Location") != "/recipe/42?read=started" {
		t.Fatalf("unexpected redirect %q", rr.Header().Get("Location"))
	}
	if body := get(mux, "/recipe/42?read=started").Body.String(); !strings.Contains(body, "Stop Reading") {
		t.Fatalf("expected stop button while reading")
	}

	rr = post()
	if rr.Header().Get("Location") != "/recipe/42?read=stopped" {
		t.Fatalf("unexpected redirect %q", rr.Header().Get("Location"))
	}
	if n.toggles != 2 {
		t.Fatalf("expected two toggles, got %d", n.toggles)
	}
}
