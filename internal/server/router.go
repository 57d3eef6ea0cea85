// Package server exposes the lookup service over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/violation-lookup/internal/lookup"
	"github.com/sells-group/violation-lookup/internal/model"
	"github.com/sells-group/violation-lookup/internal/session"
)

// Service is the lookup API the handlers call.
type Service interface {
	LookupBatch(ctx context.Context, targets []model.Target) []model.LookupOutcome
	LookupOne(ctx context.Context, t model.Target) model.LookupOutcome
	SessionHealth() session.Health
	RestartSession(ctx context.Context) lookup.RestartResult
	CacheInfo() lookup.CacheInfo
	ClearCache() int
	EvictCache(t model.Target) bool
}

// Options configures the router.
type Options struct {
	// MaxTargets caps a batch request. Default: 20.
	MaxTargets int
	// CORSOrigins lists allowed origins. Empty allows all.
	CORSOrigins []string
}

// Handler serves the HTTP API.
type Handler struct {
	service    Service
	maxTargets int
	startedAt  time.Time
	nowFunc    func() time.Time
	log        *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(service Service, opts Options) *Handler {
	maxTargets := opts.MaxTargets
	if maxTargets <= 0 {
		maxTargets = 20
	}
	return &Handler{
		service:    service,
		maxTargets: maxTargets,
		startedAt:  time.Now(),
		nowFunc:    time.Now,
		log:        zap.L().With(zap.String("component", "server")),
	}
}

// NewRouter wires routes and middleware.
func NewRouter(h *Handler, opts Options) http.Handler {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Route("/violations", func(r chi.Router) {
		r.Post("/lookup", h.lookupBatch)
		r.Post("/lookup/multiple", h.lookupBatch)
		r.Post("/lookup/single", h.lookupSingle)
	})

	r.Get("/health", h.health)
	r.Get("/health/browser", h.browserHealth)
	r.Post("/health/browser/restart", h.restartBrowser)

	r.Get("/cache/stats", h.cacheStats)
	r.Delete("/cache", h.clearCache)
	r.Delete("/cache/{plateNumber}", h.evictCache)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
