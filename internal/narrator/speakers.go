package narrator

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"recipebox/internal/cache"
	"recipebox/internal/config"
)

// AudioPrefix is where synthesized narration lives in the store.
const AudioPrefix = "narration/"

// NewSpeaker picks the configured speech backend. Mocks never leave the process.
func NewSpeaker(cfg config.SpeechConfig, mocks bool, c cache.Cache) (Speaker, error) {
	switch cfg.Speaker {
	case "openai":
		if mocks {
			slog.Info("using log speaker in place of openai")
			return LogSpeaker{}, nil
		}
		return NewOpenAISpeaker(cfg, c, option.WithAPIKey(cfg.OpenAIAPIKey)), nil
	case "command":
		name := cfg.Command
		if name == "" {
			name = "espeak-ng"
		}
		if _, err := exec.LookPath(name); err != nil {
			return nil, fmt.Errorf("speech command %q: %w", name, err)
		}
		return CommandSpeaker{Command: name}, nil
	case "log", "":
		return LogSpeaker{}, nil
	default:
		return nil, fmt.Errorf("unknown speech speaker %q", cfg.Speaker)
	}
}

// OpenAISpeaker synthesizes mp3 audio and stores it once per distinct script.
// With a Player configured the audio is also played on this machine.
type OpenAISpeaker struct {
	client openai.Client
	cache  cache.Cache
	model  string
	voice  string
	player string
}

func NewOpenAISpeaker(cfg config.SpeechConfig, c cache.Cache, opts ...option.RequestOption) *OpenAISpeaker {
	model := cfg.OpenAIModel
	if model == "" {
		model = openai.SpeechModelGPT4oMiniTTS
	}
	voice := cfg.OpenAIVoice
	if voice == "" {
		voice = "alloy"
	}
	return &OpenAISpeaker{
		client: openai.NewClient(opts...),
		cache:  c,
		model:  model,
		voice:  voice,
		player: cfg.Command,
	}
}

// AudioHash names the stored audio for text under these options.
func (s *OpenAISpeaker) AudioHash(text string, opts Options) string {
	h := fnv.New64a()
	for _, part := range []string{s.model, s.voice, opts.Language, strconv.FormatFloat(opts.Rate, 'f', 2, 64), text} {
		_, _ = io.WriteString(h, part)
		_, _ = h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 36)
}

func AudioKey(hash string) string {
	return AudioPrefix + hash + ".mp3"
}

func (s *OpenAISpeaker) Speak(ctx context.Context, text string, opts Options) error {
	key := AudioKey(s.AudioHash(text, opts))
	exists, err := s.cache.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check narration audio: %w", err)
	}
	if !exists {
		if err := s.synthesize(ctx, key, text, opts); err != nil {
			return err
		}
	}
	if s.player == "" {
		return nil
	}
	return s.play(ctx, key)
}

func (s *OpenAISpeaker) synthesize(ctx context.Context, key, text string, opts Options) error {
	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          s.model,
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
		Speed:          openai.Float(clampSpeed(opts.Rate)),
	}
	if s.model == openai.SpeechModelGPT4oMiniTTS && opts.Language != "" {
		params.Instructions = openai.String("Read this recipe aloud in a calm voice. Language: " + opts.Language + ".")
	}

	start := time.Now()
	resp, err := s.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return fmt.Errorf("synthesize narration: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.ErrorContext(ctx, "failed to close speech response", "error", err)
		}
	}()
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read narration audio: %w", err)
	}
	slog.InfoContext(ctx, "synthesized narration", "key", key, "bytes", len(audio), "duration", time.Since(start))

	if err := s.cache.Put(ctx, key, string(audio), cache.IfNoneMatch()); err != nil && !errors.Is(err, cache.ErrAlreadyExists) {
		return fmt.Errorf("store narration audio: %w", err)
	}
	return nil
}

func (s *OpenAISpeaker) play(ctx context.Context, key string) error {
	rc, err := s.cache.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load narration audio: %w", err)
	}
	defer func() {
		_ = rc.Close()
	}()

	f, err := os.CreateTemp("", "recipebox-*.mp3")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return run(ctx, s.player, f.Name())
}

// speed outside this range is rejected by the API
func clampSpeed(rate float64) float64 {
	return min(max(rate, 0.25), 4.0)
}

// CommandSpeaker hands the script to an OS speech command such as espeak-ng or say.
type CommandSpeaker struct {
	Command string
}

func (s CommandSpeaker) Speak(ctx context.Context, text string, opts Options) error {
	return run(ctx, s.Command, commandArgs(s.Command, text, opts)...)
}

// roughly the default speaking speed of both espeak-ng and say
const baseWordsPerMinute = 175

func commandArgs(command, text string, opts Options) []string {
	wpm := strconv.Itoa(int(baseWordsPerMinute * opts.Rate))
	switch filepath.Base(command) {
	case "espeak-ng", "espeak":
		args := []string{"-s", wpm}
		if opts.Language != "" {
			args = append(args, "-v", strings.ToLower(opts.Language))
		}
		return append(args, text)
	case "say":
		return []string{"-r", wpm, text}
	default:
		return []string{text}
	}
}

func run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// LogSpeaker logs the script and pretends to read it at about three words a second.
type LogSpeaker struct {
	WordsPerSecond float64
}

func (s LogSpeaker) Speak(ctx context.Context, text string, opts Options) error {
	slog.InfoContext(ctx, "narrating", "language", opts.Language, "rate", opts.Rate, "text", text)
	wps := s.WordsPerSecond
	if wps <= 0 {
		wps = 3
	}
	rate := opts.Rate
	if rate <= 0 {
		rate = 1
	}
	d := time.Duration(float64(len(strings.Fields(text))) / (wps * rate) * float64(time.Second))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
