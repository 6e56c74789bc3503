package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/antoniostano/memorai/internal/app"
	"github.com/antoniostano/memorai/internal/config"
	"github.com/antoniostano/memorai/internal/memory"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	built, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("build failed: %v", err)
	}
	defer func() {
		if err := built.Cleanup(); err != nil {
			log.Printf("cleanup error: %v", err)
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: built.API.Router(),
	}

	go func() {
		log.Printf("memorai listening on %s (store: %s, ollama: %s)",
			cfg.BindAddr, memory.StoreMode(cfg.DatabaseURL), cfg.OllamaURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
