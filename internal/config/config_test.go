package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8484" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8484")
	}
	if cfg.OllamaURL != "http://localhost:11434" {
		t.Fatalf("OllamaURL = %q, want default", cfg.OllamaURL)
	}
	if cfg.EmbedModel != "mxbai-embed-large" {
		t.Fatalf("EmbedModel = %q, want default", cfg.EmbedModel)
	}
	if cfg.ChatModel != "qwen2.5:14b" {
		t.Fatalf("ChatModel = %q, want default", cfg.ChatModel)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL = %q, want empty default", cfg.DatabaseURL)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Fatalf("ShutdownTimeout = %v, want 15s", cfg.ShutdownTimeout)
	}
	if cfg.OllamaTimeout != 60*time.Second {
		t.Fatalf("OllamaTimeout = %v, want 60s", cfg.OllamaTimeout)
	}
}

func TestLoadUsesExplicitValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("OLLAMA_URL", "http://ollama.internal:11434")
	t.Setenv("OLLAMA_TIMEOUT", "2m")
	t.Setenv("DATABASE_URL", " postgres://localhost/memorai ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.OllamaURL != "http://ollama.internal:11434" {
		t.Fatalf("OllamaURL = %q, want explicit value", cfg.OllamaURL)
	}
	if cfg.OllamaTimeout != 2*time.Minute {
		t.Fatalf("OllamaTimeout = %v, want 2m", cfg.OllamaTimeout)
	}
	if cfg.DatabaseURL != "postgres://localhost/memorai" {
		t.Fatalf("DatabaseURL = %q, want trimmed value", cfg.DatabaseURL)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("OLLAMA_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want parse error")
	}
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("OLLAMA_TIMEOUT", "-5s")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want validation error")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"DATABASE_URL",
		"OLLAMA_URL",
		"OLLAMA_TIMEOUT",
		"OLLAMA_EMBED_MODEL",
		"OLLAMA_CHAT_MODEL",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
