// Package mockapi serves API-key-gated current-conditions data for the
// warehouse pipeline to ingest.
package mockapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// KeyValidator authorizes API keys. keystore.Store satisfies it.
type KeyValidator interface {
	Validate(key string) bool
}

// Server is the observation API HTTP service.
type Server struct {
	httpServer *http.Server
	gen        *Generator
	keys       KeyValidator
	logger     *slog.Logger
}

// NewServer wires the router: /health and / are open, the /weather routes
// require a valid key in the X-API-Key header.
func NewServer(addr string, gen *Generator, keys KeyValidator, logger *slog.Logger) *Server {
	s := &Server{
		gen:    gen,
		keys:   keys,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
		AllowedHeaders: []string{"X-API-Key"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndex)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Get("/weather", s.handleWeatherQuery)
		r.Get("/weather/{city}", s.handleWeatherPath)
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("observation api starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// requireAPIKey rejects requests without a whitelisted key. A missing key is
// "unauthorized", a known-bad one is "forbidden", mirroring the error
// discriminators clients already handle.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			s.logger.Warn("request without api key", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "unauthorized",
				"Invalid or missing API key. Please provide a valid API key in the X-API-Key header.")
			return
		}
		if !s.keys.Validate(key) {
			s.logger.Warn("invalid api key attempt", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeError(w, http.StatusForbidden, "forbidden", "API key not authorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWeatherQuery(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	if city == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "City parameter is required"})
		return
	}
	s.serveWeather(w, r, city)
}

func (s *Server) handleWeatherPath(w http.ResponseWriter, r *http.Request) {
	s.serveWeather(w, r, chi.URLParam(r, "city"))
}

func (s *Server) serveWeather(w http.ResponseWriter, r *http.Request, city string) {
	country := r.URL.Query().Get("country")
	unit := r.URL.Query().Get("unit")
	if unit == "" {
		unit = "m"
	}
	writeJSON(w, http.StatusOK, s.gen.Generate(city, country, unit))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	cities := s.gen.CityNames()
	sort.Strings(cities)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "Weather Data API",
		"authentication": "API key required - use the X-API-Key header",
		"endpoints": map[string]any{
			"GET /weather":        "Weather by query parameters: city (required), country, unit",
			"GET /weather/{city}": "Weather by path parameter",
			"GET /health":         "Health check, no authentication",
		},
		"available_cities": cities,
	})
}

func writeError(w http.ResponseWriter, status int, kind, info string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error": map[string]any{
			"code": status,
			"type": kind,
			"info": info,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}
