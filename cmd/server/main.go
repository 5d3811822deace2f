package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inkgen/inkgen/internal/api"
	"github.com/inkgen/inkgen/internal/cache"
	"github.com/inkgen/inkgen/internal/config"
	"github.com/inkgen/inkgen/internal/generate"
	"github.com/inkgen/inkgen/internal/history"
	"github.com/inkgen/inkgen/internal/orchestrator"
	"github.com/inkgen/inkgen/internal/persist"
)

// drainTimeout bounds how long shutdown waits for queued history writes.
const drainTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	// Open SQLite.
	db, err := history.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	// Initialize history log.
	hist, err := history.New(db)
	if err != nil {
		log.Fatalf("init history: %v", err)
	}

	// Initialize result cache.
	var cacheStore cache.Store
	switch cfg.CacheBackend {
	case "sqlite":
		cacheStore, err = cache.NewSQLite(db)
		if err != nil {
			log.Fatalf("init sqlite cache: %v", err)
		}
	default:
		mem, err := cache.NewMemory()
		if err != nil {
			log.Fatalf("init memory cache: %v", err)
		}
		defer mem.Close()
		cacheStore = mem
	}

	// Build the generation client.
	var gen generate.Client
	switch {
	case cfg.UseStubs():
		log.Println("no provider API key set, using stub generation client")
		gen = &generate.StubClient{}
	case cfg.ImageProvider == "stability":
		log.Println("using Stability AI generation client")
		gen = generate.NewStabilityClient(cfg.StabilityKey, cfg.ImageDir,
			generate.WithStabilityEngine(cfg.StabilityEngine),
			generate.WithStabilityTimeout(cfg.HTTPTimeout))
	default:
		log.Println("using OpenAI generation client")
		gen = generate.NewOpenAIClient(cfg.OpenAIKey,
			generate.WithOpenAIModel(cfg.OpenAIImageModel),
			generate.WithOpenAITimeout(cfg.HTTPTimeout))
	}

	// Background persistence queue.
	queue := persist.NewQueue(cfg.QueueWorkers, cfg.QueueSize)

	orch := orchestrator.New(gen, cacheStore, hist, queue,
		orchestrator.WithCacheTTL(cfg.CacheTTL),
		orchestrator.WithAsyncCacheWrite(cfg.CacheWriteAsync))

	// Start API server.
	srv := api.New(orch, hist,
		api.WithCORSOrigin(cfg.CORSOrigin),
		api.WithImageDir(cfg.ImageDir))
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Handler(),
	}

	// Graceful shutdown: stop accepting requests, then drain queued writes.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
		queue.Drain(shutdownCtx)
	}()

	fmt.Printf("inkgen server listening on http://localhost:%s\n", cfg.Port)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
