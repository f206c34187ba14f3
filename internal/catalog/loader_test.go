package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"recipebox/internal/credentials"
	"recipebox/internal/spoonacular"
	"recipebox/internal/templates"
)

type call struct {
	query string
	key   string
}

type fakeSearcher struct {
	mu    sync.Mutex
	calls []call
	fail  map[string]error // by query
}

func (f *fakeSearcher) SearchByCategory(_ context.Context, query, apiKey string) ([]spoonacular.RecipeSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{query: query, key: apiKey})
	if err := f.fail[query]; err != nil {
		return nil, err
	}
	return []spoonacular.RecipeSummary{{ID: len(f.calls), Title: query + " recipe", Image: "img"}}, nil
}

func (f *fakeSearcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type memKeys struct {
	key     string
	sets    int
	cleared bool
	getErr  error
}

func (m *memKeys) Get(context.Context) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	if m.key == "" {
		return "", credentials.ErrNoKey
	}
	return m.key, nil
}

func (m *memKeys) Set(_ context.Context, key string) error {
	m.key = key
	m.sets++
	return nil
}

func (m *memKeys) Clear(context.Context) error {
	m.key = ""
	m.cleared = true
	return nil
}

var authErr = &spoonacular.StatusError{Operation: "complexSearch", StatusCode: 401}

func TestStartWithoutKeyNeedsKeyAndNoFetch(t *testing.T) {
	s := &fakeSearcher{}
	l := NewLoader(s, &memKeys{})

	if err := l.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}
	snap := l.Snapshot()
	if snap.State != NeedsKey || !snap.ShowPrompt {
		t.Fatalf("expected needs key with prompt, got %+v", snap)
	}
	if s.count() != 0 {
		t.Fatalf("expected no fetches, got %d", s.count())
	}
}

func TestStartFetchesEachCategoryInOrder(t *testing.T) {
	s := &fakeSearcher{}
	keys := &memKeys{key: "k"}
	l := NewLoader(s, keys)

	if err := l.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(s.calls) != len(DefaultCategories) {
		t.Fatalf("expected %d fetches, got %d", len(DefaultCategories), len(s.calls))
	}
	for i, c := range DefaultCategories {
		if s.calls[i] != (call{query: c.Query, key: "k"}) {
			t.Fatalf("call %d: expected %q with key, got %+v", i, c.Query, s.calls[i])
		}
	}

	snap := l.Snapshot()
	if snap.State != Loaded || snap.ShowPrompt || snap.Err != nil {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.LoadedAt.IsZero() {
		t.Fatalf("expected loaded time")
	}
	for i, section := range snap.Result.Sections {
		if section.Label != DefaultCategories[i].Label {
			t.Fatalf("section %d: got %q", i, section.Label)
		}
	}
	if recipes, ok := snap.Result.Lookup("Dessert"); !ok || recipes[0].Title != "dessert recipe" {
		t.Fatalf("lookup dessert: %v %v", recipes, ok)
	}
}

func TestAuthFailureKeepsPreviousResult(t *testing.T) {
	s := &fakeSearcher{}
	keys := &memKeys{key: "good"}
	l := NewLoader(s, keys)
	if err := l.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}
	before := l.Snapshot().Result

	s.fail = map[string]error{"dessert": authErr}
	err := l.SubmitKey(t.Context(), "bad")
	if !errors.Is(err, spoonacular.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}

	snap := l.Snapshot()
	if snap.State != NeedsKey || !snap.ShowPrompt {
		t.Fatalf("expected needs key, got %+v", snap)
	}
	if snap.Result != before {
		t.Fatalf("expected previous result to be kept")
	}
	if keys.key != "good" {
		t.Fatalf("failed key must not be persisted, store has %q", keys.key)
	}
	if !errors.Is(snap.Err, spoonacular.ErrAuth) {
		t.Fatalf("expected recorded auth error, got %v", snap.Err)
	}
	// aborted at the failing category
	if got := len(s.calls); got != 4+3 {
		t.Fatalf("expected load to stop at dessert, got %d calls", got)
	}
}

func TestSubmitBlankKey(t *testing.T) {
	for _, key := range []string{"", "   ", "\t\n"} {
		s := &fakeSearcher{}
		l := NewLoader(s, &memKeys{})
		if err := l.SubmitKey(t.Context(), key); !errors.Is(err, ErrValidation) {
			t.Fatalf("key %q: expected validation error, got %v", key, err)
		}
		if s.count() != 0 {
			t.Fatalf("key %q: expected no fetch", key)
		}
	}
}

func TestSubmitKeyPersistsTrimmedKeyOnSuccess(t *testing.T) {
	s := &fakeSearcher{}
	keys := &memKeys{}
	l := NewLoader(s, keys)

	if err := l.SubmitKey(t.Context(), "  abc  "); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if keys.key != "abc" || keys.sets != 1 {
		t.Fatalf("expected trimmed key persisted once, got %q (%d)", keys.key, keys.sets)
	}
	for _, c := range s.calls {
		if c.key != "abc" {
			t.Fatalf("expected trimmed key in call, got %q", c.key)
		}
	}
}

func TestRefreshWithoutKeyDoesNotFetch(t *testing.T) {
	s := &fakeSearcher{}
	l := NewLoader(s, &memKeys{})
	if err := l.Refresh(t.Context()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if s.count() != 0 || l.Snapshot().State != NeedsKey {
		t.Fatalf("expected needs key without fetch")
	}
}

func TestRefreshReusesKey(t *testing.T) {
	s := &fakeSearcher{}
	l := NewLoader(s, &memKeys{key: "k"})
	if err := l.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := l.Refresh(t.Context()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if s.count() != 2*len(DefaultCategories) {
		t.Fatalf("expected two full loads, got %d calls", s.count())
	}
}

func TestClearKey(t *testing.T) {
	s := &fakeSearcher{}
	keys := &memKeys{key: "k"}
	l := NewLoader(s, keys)
	if err := l.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := l.ClearKey(t.Context()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !keys.cleared || l.Snapshot().State != NeedsKey {
		t.Fatalf("expected cleared key and prompt")
	}
	calls := s.count()
	if err := l.Refresh(t.Context()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if s.count() != calls {
		t.Fatalf("refresh after clear must not fetch")
	}
}

func TestKeyStoreFailureNeedsKey(t *testing.T) {
	s := &fakeSearcher{}
	l := NewLoader(s, &memKeys{getErr: fmt.Errorf("%w: boom", credentials.ErrStorage)})
	if err := l.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}
	snap := l.Snapshot()
	if snap.State != NeedsKey || !errors.Is(snap.Err, credentials.ErrStorage) || s.count() != 0 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestConcurrentFetchKeepsOrder(t *testing.T) {
	s := &fakeSearcher{}
	l := NewLoader(s, &memKeys{key: "k"}, WithConcurrentFetch(true))
	if err := l.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}
	snap := l.Snapshot()
	for i, c := range DefaultCategories {
		if snap.Result.Sections[i].Label != c.Label {
			t.Fatalf("section %d out of order: %q", i, snap.Result.Sections[i].Label)
		}
		if snap.Result.Sections[i].Recipes[0].Title != c.Query+" recipe" {
			t.Fatalf("section %d has wrong recipes", i)
		}
	}

	s.fail = map[string]error{"breakfast": authErr}
	if err := l.Refresh(t.Context()); !errors.Is(err, spoonacular.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if l.Snapshot().State != NeedsKey {
		t.Fatalf("expected needs key")
	}
}

func TestWithCategories(t *testing.T) {
	s := &fakeSearcher{}
	l := NewLoader(s, &memKeys{key: "k"}, WithCategories([]Category{{Label: "Breakfast", Query: "breakfast"}}))
	if err := l.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.count() != 1 {
		t.Fatalf("expected one fetch, got %d", s.count())
	}
}

type blockingSearcher struct {
	release chan struct{}
	entered chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func (b *blockingSearcher) SearchByCategory(_ context.Context, query, apiKey string) ([]spoonacular.RecipeSummary, error) {
	b.calls.Add(1)
	if apiKey == "slow" {
		b.once.Do(func() { close(b.entered) })
		<-b.release
	}
	return []spoonacular.RecipeSummary{{ID: 1, Title: apiKey}}, nil
}

func TestSupersededLoadIsDiscarded(t *testing.T) {
	b := &blockingSearcher{release: make(chan struct{}), entered: make(chan struct{})}
	l := NewLoader(b, &memKeys{}, WithCategories([]Category{{Label: "Breakfast", Query: "breakfast"}}))

	done := make(chan error)
	go func() { done <- l.SubmitKey(context.Background(), "slow") }()
	<-b.entered

	if err := l.SubmitKey(t.Context(), "fast"); err != nil {
		t.Fatalf("fast submit: %v", err)
	}
	close(b.release)
	if err := <-done; err != nil {
		t.Fatalf("slow submit: %v", err)
	}

	recipes, _ := l.Snapshot().Result.Lookup("Breakfast")
	if recipes[0].Title != "fast" {
		t.Fatalf("expected newer load to win, got %q", recipes[0].Title)
	}
}

func TestStartOnceLoadsOnce(t *testing.T) {
	b := &blockingSearcher{release: make(chan struct{}), entered: make(chan struct{})}
	l := NewLoader(b, &memKeys{key: "slow"}, WithCategories([]Category{{Label: "Breakfast", Query: "breakfast"}}))

	done := make(chan error)
	go func() {
		started, err := l.StartOnce(context.Background())
		if !started {
			err = errors.New("first caller did not start")
		}
		done <- err
	}()
	<-b.entered

	started, err := l.StartOnce(t.Context())
	if err != nil || started {
		t.Fatalf("expected second caller to skip, got started=%v err=%v", started, err)
	}
	close(b.release)
	if err := <-done; err != nil {
		t.Fatalf("first start: %v", err)
	}
	if started, _ := l.StartOnce(t.Context()); started {
		t.Fatal("expected a loaded catalog not to start again")
	}
	if n := b.calls.Load(); n != 1 {
		t.Fatalf("expected one search, got %d", n)
	}
	if l.Snapshot().State != Loaded {
		t.Fatalf("expected loaded, got %v", l.Snapshot().State)
	}
}

func TestServerFlow(t *testing.T) {
	if err := templates.Init(); err != nil {
		t.Fatalf("templates: %v", err)
	}
	s := &fakeSearcher{}
	keys := &memKeys{}
	mux := http.NewServeMux()
	NewServer(NewLoader(s, keys)).Register(mux)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `action="/apikey"`) {
		t.Fatalf("expected key prompt, got %d %s", rr.Code, rr.Body.String())
	}

	post := func(path string, form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		return rr
	}

	rr = post("/apikey", url.Values{"apikey": {" "}})
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "Please enter an API key.") {
		t.Fatalf("expected validation message, got %d", rr.Code)
	}
	if s.count() != 0 {
		t.Fatalf("blank key must not fetch")
	}

	rr = post("/apikey", url.Values{"apikey": {"k"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	body := rr.Body.String()
	if strings.Contains(body, `action="/apikey"`) || !strings.Contains(body, "BREAKFAST") {
		t.Fatalf("expected loaded sections, got %s", body)
	}

	rr = post("/apikey/clear", nil)
	if rr.Code != http.StatusSeeOther || keys.key != "" {
		t.Fatalf("expected key cleared")
	}
}

func TestDescribe(t *testing.T) {
	if Describe(nil) != "" {
		t.Fatalf("nil error should describe as empty")
	}
	if !strings.Contains(Describe(fmt.Errorf("load: %w", authErr)), "rejected") {
		t.Fatalf("auth errors should mention rejection")
	}
	if !strings.Contains(Describe(spoonacular.ErrTransport), "connection") {
		t.Fatalf("transport errors should mention the connection")
	}
}
