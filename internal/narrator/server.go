package narrator

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"recipebox/internal/cache"
)

var hashPattern = regexp.MustCompile(`^[0-9a-z]{1,16}$`)

type server struct {
	cache cache.Cache
}

// NewServer serves stored narration audio.
func NewServer(c cache.Cache) *server {
	return &server{cache: c}
}

func (s *server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /narration/{hash}", s.handleAudio)
}

func (s *server) handleAudio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hash := r.PathValue("hash")
	if !hashPattern.MatchString(hash) {
		http.Error(w, "invalid narration id", http.StatusBadRequest)
		return
	}
	rc, err := s.cache.Get(ctx, AudioKey(hash))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			http.Error(w, "narration not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to load narration", "hash", hash, "error", err)
		http.Error(w, "failed to load narration", http.StatusInternalServerError)
		return
	}
	defer func() {
		_ = rc.Close()
	}()
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, rc); err != nil {
		slog.ErrorContext(ctx, "failed to write narration", "hash", hash, "error", err)
	}
}
