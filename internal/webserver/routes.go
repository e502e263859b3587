package webserver

import (
	"encoding/json"
	"net/http"

	"github.com/spboyer/aemforge/internal/webapi"
)

// registerRoutes sets up the API routes and the root index on the given mux.
func registerRoutes(mux *http.ServeMux, cfg Config) {
	h := webapi.NewHandlers(cfg.Jobs, cfg.Scorer, webapi.Options{
		SyncTimeout: cfg.SyncTimeout,
		Logger:      cfg.Logger,
	})
	webapi.RegisterRoutes(mux, h)
	mux.HandleFunc("GET /{$}", handleIndex)
	mux.HandleFunc("/api/", handleAPINotFound)
}

// handleIndex describes the service and its entry points.
func handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
		"name":    "aemforge",
		"version": webapi.Version,
		"endpoints": []string{
			"GET /api/health",
			"POST /api/components/generate",
			"POST /api/components/generate-sync",
			"GET /api/components/status/{id}",
			"GET /api/components/result/{id}",
			"GET /api/components/result/{id}/report",
			"GET /api/components/watch/{id}",
			"POST /api/validate",
		},
	})
}

// handleAPINotFound returns a JSON 404 for unknown API paths.
func handleAPINotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(webapi.ErrorResponse{Error: "not found", Code: http.StatusNotFound}) //nolint:errcheck
}
