package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

const (
	DefaultSpoonacularURL = "https://api.spoonacular.com"
	DefaultResultCount    = 5
)

type Config struct {
	Spoonacular SpoonacularConfig `json:"spoonacular"`
	Catalog     CatalogConfig     `json:"catalog"`
	Storage     StorageConfig     `json:"storage"`
	Credentials CredentialsConfig `json:"credentials"`
	Speech      SpeechConfig      `json:"speech"`
	Telemetry   TelemetryConfig   `json:"telemetry"`
	Mocks       MockConfig        `json:"mocks"`
}

type SpoonacularConfig struct {
	BaseURL     string        `json:"base_url"`
	ResultCount int           `json:"result_count"` // recipes per category
	RetryMax    int           `json:"retry_max"`    // 0 means a single attempt
	Timeout     time.Duration `json:"timeout"`      // 0 leaves the transport default
	HTTPClient  *http.Client  `json:"-"`            // for tests
}

type CatalogConfig struct {
	Concurrent bool `json:"concurrent"`
}

type StorageConfig struct {
	Backend string `json:"backend"` // file, memory, blob, sqlite, redis
	Dir     string `json:"dir"`

	BlobAccountName string `json:"blob_account_name"`
	BlobAccountKey  string `json:"blob_account_key"`
	BlobContainer   string `json:"blob_container"`

	SQLitePath string `json:"sqlite_path"`

	RedisURL string `json:"redis_url"`
}

type CredentialsConfig struct {
	Passphrase   string `json:"-"`
	IdentityPath string `json:"identity_path"`
}

type SpeechConfig struct {
	Speaker  string  `json:"speaker"` // openai, command, log
	Language string  `json:"language"`
	Rate     float64 `json:"rate"`

	OpenAIAPIKey string `json:"-"`
	OpenAIModel  string `json:"openai_model"`
	OpenAIVoice  string `json:"openai_voice"`

	// Command is the OS speech command for the "command" speaker, or the audio
	// player fed the synthesized mp3 for the "openai" speaker.
	Command string `json:"command"`
}

type TelemetryConfig struct {
	ServiceName  string `json:"service_name"`
	OTLPEndpoint string `json:"otlp_endpoint"` // empty keeps logs local and traces off
	LogLevel     string `json:"log_level"`

	// LogContainer enables the append blob log sink, using the storage account above.
	LogContainer string `json:"log_container"`
}

type MockConfig struct {
	Enable bool `json:"enable"`
}

// Load reads configuration from the environment, after merging an optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	dataDir := getEnvOrDefault("RECIPEBOX_DATA_DIR", filepath.Join(xdg.DataHome, "recipebox"))

	resultCount, err := getIntOrDefault("SPOONACULAR_RESULT_COUNT", DefaultResultCount)
	if err != nil {
		return nil, err
	}
	retryMax, err := getIntOrDefault("SPOONACULAR_RETRY_MAX", 0)
	if err != nil {
		return nil, err
	}
	var timeout time.Duration
	if v := os.Getenv("SPOONACULAR_TIMEOUT"); v != "" {
		if timeout, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("invalid SPOONACULAR_TIMEOUT %q: %w", v, err)
		}
	}
	rate := 1.0
	if v := os.Getenv("SPEECH_RATE"); v != "" {
		if rate, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid SPEECH_RATE %q: %w", v, err)
		}
	}

	cfg := &Config{
		Spoonacular: SpoonacularConfig{
			BaseURL:     getEnvOrDefault("SPOONACULAR_BASE_URL", DefaultSpoonacularURL),
			ResultCount: resultCount,
			RetryMax:    retryMax,
			Timeout:     timeout,
		},
		Catalog: CatalogConfig{
			Concurrent: getBool("CATALOG_CONCURRENT"),
		},
		Storage: StorageConfig{
			Backend:         getEnvOrDefault("STORAGE_BACKEND", "file"),
			Dir:             dataDir,
			BlobAccountName: os.Getenv("AZURE_STORAGE_ACCOUNT_NAME"),
			BlobAccountKey:  os.Getenv("AZURE_STORAGE_PRIMARY_ACCOUNT_KEY"),
			BlobContainer:   getEnvOrDefault("AZURE_STORAGE_CONTAINER", "recipebox"),
			SQLitePath:      getEnvOrDefault("SQLITE_PATH", filepath.Join(dataDir, "recipebox.db")),
			RedisURL:        os.Getenv("REDIS_URL"),
		},
		Credentials: CredentialsConfig{
			Passphrase:   os.Getenv("RECIPEBOX_PASSPHRASE"),
			IdentityPath: getEnvOrDefault("RECIPEBOX_IDENTITY", filepath.Join(dataDir, "identity.txt")),
		},
		Speech: SpeechConfig{
			Speaker:      getEnvOrDefault("SPEECH_SPEAKER", "log"),
			Language:     getEnvOrDefault("SPEECH_LANGUAGE", "en-US"),
			Rate:         rate,
			OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:  getEnvOrDefault("OPENAI_TTS_MODEL", "gpt-4o-mini-tts"),
			OpenAIVoice:  getEnvOrDefault("OPENAI_TTS_VOICE", "alloy"),
			Command:      os.Getenv("SPEECH_COMMAND"),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  getEnvOrDefault("OTEL_SERVICE_NAME", "recipebox"),
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
			LogContainer: os.Getenv("LOG_CONTAINER"),
		},
		Mocks: MockConfig{
			Enable: getBool("MOCKS"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Spoonacular.ResultCount <= 0 {
		return errors.New("spoonacular result count must be positive")
	}
	if c.Spoonacular.RetryMax < 0 {
		return errors.New("spoonacular retry max cannot be negative")
	}
	switch c.Storage.Backend {
	case "file", "memory", "sqlite":
	case "blob":
		if c.Storage.BlobAccountName == "" || c.Storage.BlobAccountKey == "" {
			return errors.New("blob storage requires AZURE_STORAGE_ACCOUNT_NAME and AZURE_STORAGE_PRIMARY_ACCOUNT_KEY")
		}
	case "redis":
		if c.Storage.RedisURL == "" {
			return errors.New("redis storage requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Speech.Speaker {
	case "log", "command":
	case "openai":
		if c.Speech.OpenAIAPIKey == "" && !c.Mocks.Enable {
			return errors.New("openai speaker requires OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown speech speaker %q", c.Speech.Speaker)
	}
	if c.Speech.Rate <= 0 {
		return errors.New("speech rate must be positive")
	}
	if c.Telemetry.LogContainer != "" && (c.Storage.BlobAccountName == "" || c.Storage.BlobAccountKey == "") {
		return errors.New("LOG_CONTAINER requires AZURE_STORAGE_ACCOUNT_NAME and AZURE_STORAGE_PRIMARY_ACCOUNT_KEY")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}
