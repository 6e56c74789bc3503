package app

import (
	"context"
	"fmt"

	"github.com/antoniostano/memorai/internal/config"
	"github.com/antoniostano/memorai/internal/httpapi"
	"github.com/antoniostano/memorai/internal/memory"
	"github.com/antoniostano/memorai/internal/observability"
	"github.com/antoniostano/memorai/internal/ollama"
	"github.com/antoniostano/memorai/internal/profile"
)

type BuildResult struct {
	Config  config.Config
	API     *httpapi.Server
	Store   memory.Store
	Metrics *observability.Metrics

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

// Build constructs the shared collaborators once; the store and both
// inference clients are long-lived and safe to share across requests.
func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}

	client := ollama.New(ollama.Config{
		BaseURL:    cfg.OllamaURL,
		EmbedModel: cfg.EmbedModel,
		ChatModel:  cfg.ChatModel,
		Timeout:    cfg.OllamaTimeout,
	})
	synth := profile.NewSynthesizer(client)

	api := httpapi.New(cfg, store, client, synth, metrics)

	return &BuildResult{
		Config:  cfg,
		API:     api,
		Store:   store,
		Metrics: metrics,
		Cleanup: store.Close,
	}, nil
}
