package narrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"recipebox/internal/spoonacular"
)

type Options struct {
	Language string
	Rate     float64
}

func DefaultOptions() Options {
	return Options{Language: "en-US", Rate: 1.0}
}

// Speaker reads text aloud and returns when done or when ctx is cancelled.
type Speaker interface {
	Speak(ctx context.Context, text string, opts Options) error
}

type Status int

const (
	Started Status = iota + 1
	Stopped
)

func (s Status) String() string {
	switch s {
	case Started:
		return "started"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Narrator allows one utterance at a time across the whole process.
type Narrator struct {
	speaker Speaker
	opts    Options

	mu        sync.Mutex
	cancel    context.CancelFunc
	utterance string
	recipeID  int
}

func New(speaker Speaker, opts Options) *Narrator {
	return &Narrator{speaker: speaker, opts: opts}
}

// SpeakRecipe toggles narration: it stops if anything is being read,
// otherwise it starts reading the recipe in the background.
func (n *Narrator) SpeakRecipe(ctx context.Context, d *spoonacular.RecipeDetail) (Status, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cancel != nil {
		slog.InfoContext(ctx, "stopping narration", "utterance", n.utterance, "recipe", n.recipeID)
		n.stopLocked()
		return Stopped, nil
	}

	text := Script(d)
	id := uuid.NewString()
	speakCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	n.cancel = cancel
	n.utterance = id
	n.recipeID = d.ID

	slog.InfoContext(ctx, "starting narration", "utterance", id, "recipe", d.ID, "chars", len(text))
	go n.run(speakCtx, id, text)
	return Started, nil
}

func (n *Narrator) run(ctx context.Context, id, text string) {
	start := time.Now()
	err := n.speaker.Speak(ctx, text, n.opts)
	if err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "narration failed", "utterance", id, "error", err)
	} else {
		slog.InfoContext(ctx, "narration finished", "utterance", id, "duration", time.Since(start))
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	// a later utterance owns the state now
	if n.utterance == id {
		n.stopLocked()
	}
}

// Stop cancels the current utterance, if any.
func (n *Narrator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
}

func (n *Narrator) stopLocked() {
	if n.cancel != nil {
		n.cancel()
	}
	n.cancel = nil
	n.utterance = ""
	n.recipeID = 0
}

func (n *Narrator) IsSpeaking() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cancel != nil
}

// Speaking reports which recipe is being read.
func (n *Narrator) Speaking() (int, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.recipeID, n.cancel != nil
}

// AudioFor returns the narration audio hash for a recipe when the speaker
// keeps synthesized audio around.
func (n *Narrator) AudioFor(d *spoonacular.RecipeDetail) (string, bool) {
	a, ok := n.speaker.(interface {
		AudioHash(text string, opts Options) string
	})
	if !ok {
		return "", false
	}
	return a.AudioHash(Script(d), n.opts), true
}
