package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("GET /items", h.ListItems)
	mux.HandleFunc("DELETE /items", h.DeleteItems)
	mux.HandleFunc("POST /items/photos", h.AddPhoto)
	mux.HandleFunc("POST /items/videos", h.AddVideo)
	mux.HandleFunc("GET /items/{id}/info", h.ItemInfo)

	mux.HandleFunc("GET /jobs", h.ListJobs)
	mux.HandleFunc("POST /jobs/slideshow", h.CreateSlideshow)
	mux.HandleFunc("POST /jobs/merge", h.CreateMerge)
	mux.HandleFunc("POST /jobs/filter", h.CreateFilter)
	mux.HandleFunc("POST /jobs/title", h.CreateTitle)
	mux.HandleFunc("POST /jobs/audio", h.CreateAudio)
	mux.HandleFunc("GET /jobs/{id}", h.GetJob)
	mux.HandleFunc("DELETE /jobs/{id}", h.CancelJob)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
