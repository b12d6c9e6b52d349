package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/docreader/internal/api/handlers"
	"github.com/nikhilbhutani/docreader/internal/api/middleware"
	"github.com/nikhilbhutani/docreader/internal/auth"
	"github.com/nikhilbhutani/docreader/internal/config"
)

// Deps are the collaborators behind the routes. Caller and Reader are
// required; the rest are optional and their features switch off when nil.
type Deps struct {
	Caller   handlers.Completer
	Reader   handlers.Answerer
	Jobs     handlers.JobQueue
	Cache    AnswerCounterCache
	Database handlers.Pinger
}

// AnswerCounterCache is what *cache.Cache offers the API: answer caching,
// shared rate-limit counters and a readiness ping.
type AnswerCounterCache interface {
	handlers.AnswerCache
	middleware.WindowCounter
	handlers.Pinger
}

type Router struct {
	mux  *chi.Mux
	cfg  *config.Config
	deps Deps
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	return &Router{mux: chi.NewRouter(), cfg: cfg, deps: deps}
}

// Setup wires the routes. ctx bounds background work such as the in-memory
// rate limiter's janitor.
func (rt *Router) Setup(ctx context.Context) http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	var answers handlers.AnswerCache
	pingers := map[string]handlers.Pinger{}
	if rt.deps.Database != nil {
		pingers["database"] = rt.deps.Database
	}
	if rt.deps.Cache != nil {
		answers = rt.deps.Cache
		pingers["redis"] = rt.deps.Cache
		r.Use(middleware.NewRedisRateLimiter(rt.deps.Cache, rt.cfg.Server.RateLimitBurst, time.Second).Limit)
	} else {
		r.Use(middleware.NewRateLimiter(ctx, float64(rt.cfg.Server.RateLimitRPS), rt.cfg.Server.RateLimitBurst).Limit)
	}

	health := handlers.NewHealthHandler(pingers)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	extractH := handlers.NewExtractHandler(rt.deps.Caller)
	docH := handlers.NewDocumentHandler(rt.deps.Reader, rt.deps.Jobs, answers, rt.cfg.Server.MaxUploadBytes)

	r.Route("/v1", func(r chi.Router) {
		if rt.cfg.Auth.JWTSecret != "" {
			r.Use(auth.NewJWTMiddleware(rt.cfg.Auth.JWTSecret).Authenticate)
		}

		r.Route("/extract", func(r chi.Router) {
			r.Post("/freeform", extractH.FreeForm)
			r.Post("/schema", extractH.Schema)
		})
		r.Get("/usage", extractH.Usage)

		r.Post("/documents/query", docH.Query)
		r.Get("/jobs/{id}", docH.Job)
	})

	return r
}
