// Package api exposes the generation pipeline over HTTP for the frontend.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"sceneforge/pkg/version"
)

// NewServer creates and configures the HTTP server.
// It accepts handlers for all API endpoints and a shutdownFunc for graceful shutdown.
func NewServer(addr string, gen *GenerateHandler, scenes *SceneHandler, events *EventsHandler, stats *StatsHandler, keys *KeysHandler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health Endpoint
	mux.HandleFunc("GET /health", handleHealth)

	// 2. Version Endpoint
	mux.HandleFunc("GET /api/version", handleVersion)

	// 3. Generation Endpoints
	mux.HandleFunc("POST /api/generate", gen.HandleGenerate)
	mux.HandleFunc("POST /api/assets/{id}/retry", gen.HandleRetry)

	// 4. Scene Endpoints
	mux.HandleFunc("GET /api/scenes", scenes.HandleList)
	mux.HandleFunc("PUT /api/scenes/{id}", scenes.HandleUpdate)
	mux.HandleFunc("DELETE /api/scenes/{id}", scenes.HandleDelete)
	mux.HandleFunc("POST /api/scenes/reorder", scenes.HandleReorder)
	mux.HandleFunc("GET /api/assets/{id}/payload", scenes.HandlePayload)

	// 5. Event Stream Endpoint
	mux.HandleFunc("GET /api/events", events.HandleEvents)

	// 6. Stats Endpoint
	mux.Handle("GET /api/stats", stats)

	// 7. Key Validation Endpoint
	mux.HandleFunc("POST /api/keys/validate", keys.HandleValidate)

	// 8. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// No write timeout: /api/events holds its connection open.
		IdleTimeout: 60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
