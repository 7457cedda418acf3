// Package server provides HTTP server initialization and lifecycle
// management for the memtier API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/memtier/memtier/internal/config"
	"github.com/memtier/memtier/internal/engine"
	"github.com/memtier/memtier/internal/telemetry"
)

// NewHandler assembles the full HTTP handler: API routes, the telemetry
// WebSocket endpoint, rate limiting, and security headers.
func NewHandler(cfg *config.Config, eng *engine.Engine, hub *telemetry.Hub, indexer Indexer) http.Handler {
	api := NewAPI(eng, indexer)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/memories", api.CreateMemory)
	mux.HandleFunc("POST /api/memories/{id}/access", api.AccessMemory)
	mux.HandleFunc("POST /api/longterm/{id}/reinforce", api.ReinforceMemory)
	mux.HandleFunc("POST /api/facts", api.CreateFact)
	mux.HandleFunc("POST /api/consolidate", api.Consolidate)
	mux.HandleFunc("GET /api/context", api.GetContext)
	mux.HandleFunc("GET /api/stats", api.GetStats)
	mux.HandleFunc("GET /api/health", api.Health)

	if hub != nil {
		mux.Handle("/ws", hub)
	}

	rateLimiter := NewRateLimiter(cfg.Server.RateLimitPerSecond, cfg.Server.RateLimitBurst)
	handler := RateLimitMiddleware(mux, rateLimiter)
	return securityHeadersMiddleware(handler)
}

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully. Returns the actual listen address (useful for
// tests with port 0).
func Start(ctx context.Context, cfg *config.Config, eng *engine.Engine, hub *telemetry.Hub, indexer Indexer) (string, error) {
	handler := NewHandler(cfg, eng, hub, indexer)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	actualAddr := listener.Addr().String()

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown error: %v", err)
		}
		if hub != nil {
			hub.Stop()
		}
	}()

	return actualAddr, nil
}
