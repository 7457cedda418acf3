package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/memtier/memtier/internal/config"
	"github.com/memtier/memtier/internal/embedding"
	"github.com/memtier/memtier/internal/engine"
	"github.com/memtier/memtier/internal/server"
	"github.com/memtier/memtier/internal/storage/postgres"
	"github.com/memtier/memtier/internal/storage/sqlite"
	"github.com/memtier/memtier/internal/telemetry"
	"github.com/memtier/memtier/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (optional)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadConfigFile(*configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Consolidation engine with config overrides applied over the defaults.
	engineCfg := engine.DefaultConfig()
	if cfg.Engine.MergeWindowHours > 0 {
		engineCfg.MergeWindow = time.Duration(cfg.Engine.MergeWindowHours) * time.Hour
	}
	if cfg.Engine.InteractionMinAge > 0 {
		engineCfg.InteractionMinAge = cfg.Engine.InteractionMinAge
	}
	engineCfg.MaxBatchSize = cfg.Engine.MaxBatchSize

	eng, err := engine.NewEngine(engineCfg)
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}

	// Snapshot persistence: hydrate from disk and write through from here on.
	if cfg.Storage.SnapshotEngine == "sqlite" {
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
		snaps, err := sqlite.NewSnapshotStore(filepath.Join(cfg.Storage.DataPath, "memtier.db"))
		if err != nil {
			log.Fatalf("Failed to initialize snapshot store: %v", err)
		}
		defer snaps.Close()

		if err := eng.LongTerm().AttachSnapshots(ctx, snaps); err != nil {
			log.Fatalf("Failed to hydrate long-term store: %v", err)
		}
		log.Printf("Hydrated %d long-term entries from %s", eng.LongTerm().Len(), cfg.Storage.DataPath)
	}

	// Optional embedding ranker: HTTP embedder plus a pgvector index.
	var indexer server.Indexer
	if cfg.Embedding.Enabled && cfg.Storage.PostgresDSN != "" {
		index, err := postgres.NewEmbeddingProvider(cfg.Storage.PostgresDSN)
		if err != nil {
			log.Printf("Warning: embedding index unavailable, search is lexical-only: %v", err)
		} else {
			defer index.Close()
			client := embedding.NewClient(embedding.ClientConfig{
				BaseURL: cfg.Embedding.URL,
				Model:   cfg.Embedding.Model,
				Timeout: time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
			})
			ranker := embedding.NewRanker(client, index)
			eng.AttachRanker(ranker)
			indexer = ranker
		}
	}

	// Telemetry hub streams cycle events to WebSocket subscribers.
	hub := telemetry.NewHub()
	go hub.Run()
	eng.AttachSink(hub)

	// Periodic consolidation.
	go runCycleLoop(ctx, eng, cfg.Engine.CycleInterval)

	addr, err := server.Start(ctx, cfg, eng, hub, indexer)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("memtier daemon listening on http://%s", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

// runCycleLoop runs an automatic consolidation cycle on a fixed interval
// until ctx is done. A failed cycle is logged and the loop continues; a
// corrupt-state error is fatal because the invariant cannot self-heal.
func runCycleLoop(ctx context.Context, eng *engine.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			event, err := eng.RunConsolidationCycle(ctx, types.TriggerAutomatic, false)
			if err != nil {
				log.Printf("consolidation cycle failed: %v", err)
				continue
			}
			if event.ItemsProcessed > 0 || event.ConceptsExtracted > 0 || event.PatternsExtracted > 0 {
				log.Printf("consolidation cycle %s: processed=%d merged=%d inserted=%d concepts=%d patterns=%d",
					event.ID, event.ItemsProcessed, event.EpisodesMerged, event.EpisodesInserted,
					event.ConceptsExtracted, event.PatternsExtracted)
			}
		}
	}
}
