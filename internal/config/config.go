package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	LLM        LLMConfig
	Embed      EmbedConfig
	Ollama     OllamaConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Store      StoreConfig
	Storage    StorageConfig
	Retrieval  RetrievalConfig
	Retry      RetryConfig
	Answer     AnswerConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// LLMConfig selects the generative model backend.
type LLMConfig struct {
	Provider  string
	Model     string
	RateLimit float64 // requests per second; 0 disables limiting
}

// EmbedConfig selects the embedding strategy handed to the vector store.
type EmbedConfig struct {
	Provider string
	Model    string
}

type OllamaConfig struct {
	BaseURL string
}

type GeminiConfig struct {
	APIKey string
}

type OpenRouterConfig struct {
	APIKey string
}

// StoreConfig describes the vector store.
type StoreConfig struct {
	Backend    string
	Collection string
}

type StorageConfig struct {
	DataDir string
}

type RetrievalConfig struct {
	NResults int
}

type RetryConfig struct {
	MaxAttempts int
	Pause       string
}

type AnswerConfig struct {
	Language    string
	PersonaFile string
}

type LogConfig struct {
	Level string
}

const (
	ProviderGemini     = "gemini"
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"

	BackendChromem = "chromem"
	BackendSQLite  = "sqlite"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		LLM: LLMConfig{
			Provider:  ProviderGemini,
			Model:     "gemini-1.5-flash",
			RateLimit: 2,
		},
		Embed: EmbedConfig{
			Provider: ProviderGemini,
			Model:    "text-embedding-004",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
		},
		Store: StoreConfig{
			Backend:    BackendChromem,
			Collection: "portfolio",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Retrieval: RetrievalConfig{
			NResults: 5,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Pause:       "2s",
		},
		Answer: AnswerConfig{
			Language: "English",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// RetryPause parses Retry.Pause, falling back to two seconds when it is
// empty or malformed.
func (c Config) RetryPause() time.Duration {
	d, err := time.ParseDuration(c.Retry.Pause)
	if err != nil || d < 0 {
		return 2 * time.Second
	}
	return d
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.folio.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/folio/config.json
// and secrets fall back to $XDG_DATA_HOME/folio/secrets.json.
//
// Environment variables (FOLIO_*, plus the legacy GEMINI_API_KEY and
// TARGET_COLLECTION_NAME) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b Backend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	cfg.Embed.Provider = strings.ToLower(cfg.Embed.Provider)
	cfg.Store.Backend = strings.ToLower(cfg.Store.Backend)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applySecrets fills still-empty secret keys from the platform secret store.
func applySecrets(cfg *Config, kc keychain) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg) != "" {
			continue
		}
		if v, err := kc.Get(keychainService, s.account); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

func validate(cfg Config) error {
	switch cfg.LLM.Provider {
	case ProviderGemini, ProviderOllama, ProviderOpenRouter:
	default:
		return &ConfigurationError{Key: "llm.provider", Reason: fmt.Sprintf("unknown provider %q", cfg.LLM.Provider)}
	}
	switch cfg.Embed.Provider {
	case ProviderGemini, ProviderOllama:
	default:
		return &ConfigurationError{Key: "embed.provider", Reason: fmt.Sprintf("unknown provider %q", cfg.Embed.Provider)}
	}
	switch cfg.Store.Backend {
	case BackendChromem, BackendSQLite:
	default:
		return &ConfigurationError{Key: "store.backend", Reason: fmt.Sprintf("unknown backend %q", cfg.Store.Backend)}
	}
	if strings.TrimSpace(cfg.Store.Collection) == "" {
		return &ConfigurationError{Key: "store.collection", Reason: "collection name is empty"}
	}

	usesGemini := cfg.LLM.Provider == ProviderGemini || cfg.Embed.Provider == ProviderGemini
	if usesGemini && cfg.Gemini.APIKey == "" {
		return &ConfigurationError{
			Key: "gemini.api_key",
			Reason: "Gemini API key. Set it via environment variable FOLIO_GEMINI_API_KEY or GEMINI_API_KEY" +
				apiKeyHint("gemini_api_key"),
		}
	}
	if cfg.LLM.Provider == ProviderOpenRouter && cfg.OpenRouter.APIKey == "" {
		return &ConfigurationError{
			Key: "openrouter.api_key",
			Reason: "OpenRouter API key. Set it via environment variable FOLIO_OPENROUTER_API_KEY" +
				apiKeyHint("openrouter_api_key"),
		}
	}
	if cfg.Retrieval.NResults <= 0 {
		return &ConfigurationError{Key: "retrieval.n_results", Reason: "must be positive"}
	}
	if cfg.Retry.MaxAttempts <= 0 {
		return &ConfigurationError{Key: "retry.max_attempts", Reason: "must be positive"}
	}
	return nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
