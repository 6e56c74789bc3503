package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the memory service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	// DatabaseURL selects the postgres store; empty falls back to in-memory.
	DatabaseURL string

	OllamaURL     string
	OllamaTimeout time.Duration
	EmbedModel    string
	ChatModel     string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8484"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "memorai"),
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),
		OllamaURL:        envOrDefault("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:       envOrDefault("OLLAMA_EMBED_MODEL", "mxbai-embed-large"),
		ChatModel:        envOrDefault("OLLAMA_CHAT_MODEL", "qwen2.5:14b"),
		ShutdownTimeout:  15 * time.Second,
		OllamaTimeout:    60 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.OllamaTimeout, err = durationFromEnv("OLLAMA_TIMEOUT", cfg.OllamaTimeout)
	if err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.OllamaURL) == "" {
		return Config{}, fmt.Errorf("OLLAMA_URL must not be empty")
	}
	if strings.TrimSpace(cfg.EmbedModel) == "" {
		return Config{}, fmt.Errorf("OLLAMA_EMBED_MODEL must not be empty")
	}
	if strings.TrimSpace(cfg.ChatModel) == "" {
		return Config{}, fmt.Errorf("OLLAMA_CHAT_MODEL must not be empty")
	}
	if cfg.OllamaTimeout <= 0 {
		return Config{}, fmt.Errorf("OLLAMA_TIMEOUT must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}
