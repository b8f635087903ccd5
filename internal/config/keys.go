package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
	kDuration // kept as text, validated with time.ParseDuration
)

const keychainService = "folio"

type keySpec struct {
	key     string
	typ     keyType
	env     string
	aliases []string // legacy env names, consulted after env
	secret  bool
	account string // secret store account for secret keys
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "FOLIO_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "FOLIO_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "llm.provider", typ: kString, env: "FOLIO_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.model", typ: kString, env: "FOLIO_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.rate_limit", typ: kFloat, env: "FOLIO_LLM_RATE_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.LLM.RateLimit = v.(float64) },
		extract: func(cfg Config) any { return cfg.LLM.RateLimit },
	},
	{
		key: "embed.provider", typ: kString, env: "FOLIO_EMBED_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Embed.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Embed.Provider },
	},
	{
		key: "embed.model", typ: kString, env: "FOLIO_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Embed.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Embed.Model },
	},
	{
		key: "ollama.base_url", typ: kString, env: "FOLIO_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "gemini.api_key", typ: kString, env: "FOLIO_GEMINI_API_KEY",
		aliases: []string{"GEMINI_API_KEY"},
		secret: true, account: "gemini_api_key",
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "openrouter.api_key", typ: kString, env: "FOLIO_OPENROUTER_API_KEY",
		secret: true, account: "openrouter_api_key",
		apply:   func(cfg *Config, v any) { cfg.OpenRouter.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenRouter.APIKey },
	},
	{
		key: "store.backend", typ: kString, env: "FOLIO_STORE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Store.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Store.Backend },
	},
	{
		key: "store.collection", typ: kString, env: "FOLIO_STORE_COLLECTION",
		aliases: []string{"TARGET_COLLECTION_NAME"},
		apply:   func(cfg *Config, v any) { cfg.Store.Collection = v.(string) },
		extract: func(cfg Config) any { return cfg.Store.Collection },
	},
	{
		key: "storage.data_dir", typ: kString, env: "FOLIO_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "retrieval.n_results", typ: kInt, env: "FOLIO_RETRIEVAL_N_RESULTS",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.NResults = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.NResults },
	},
	{
		key: "retry.max_attempts", typ: kInt, env: "FOLIO_RETRY_MAX_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Retry.MaxAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Retry.MaxAttempts },
	},
	{
		key: "retry.pause", typ: kDuration, env: "FOLIO_RETRY_PAUSE",
		apply:   func(cfg *Config, v any) { cfg.Retry.Pause = v.(string) },
		extract: func(cfg Config) any { return cfg.Retry.Pause },
	},
	{
		key: "answer.language", typ: kString, env: "FOLIO_ANSWER_LANGUAGE",
		apply:   func(cfg *Config, v any) { cfg.Answer.Language = v.(string) },
		extract: func(cfg Config) any { return cfg.Answer.Language },
	},
	{
		key: "answer.persona_file", typ: kString, env: "FOLIO_ANSWER_PERSONA_FILE",
		apply:   func(cfg *Config, v any) { cfg.Answer.PersonaFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Answer.PersonaFile },
	},
	{
		key: "log.level", typ: kString, env: "FOLIO_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// parse converts raw text into the value apply expects for this key.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		i, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid integer value for %s: %w", s.key, err)
		}
		return i, nil
	case kFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number value for %s: %w", s.key, err)
		}
		return f, nil
	case kDuration:
		if _, err := time.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("invalid duration value for %s: %w", s.key, err)
		}
		return raw, nil
	default:
		return raw, nil
	}
}

func findSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// applyBackend copies stored values into cfg. A stored value that does not
// parse is a ConfigurationError.
func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		raw, ok, err := b.Get(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			return &ConfigurationError{Key: s.key, Reason: err.Error()}
		}
		s.apply(cfg, v)
	}
	return nil
}

// lookupEnv returns the first non-empty value among the key's env var
// and its legacy aliases.
func lookupEnv(s keySpec) (name, value string) {
	for _, n := range append([]string{s.env}, s.aliases...) {
		if n == "" {
			continue
		}
		if v := os.Getenv(n); v != "" {
			return n, v
		}
	}
	return "", ""
}

// applyEnvOverrides layers environment variables over cfg. Malformed values
// are logged and skipped.
func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		name, raw := lookupEnv(s)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			slog.Warn("ignoring environment override", "env", name, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}
