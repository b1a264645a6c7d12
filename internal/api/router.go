package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/flowservice"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/metrics"
)

// RouterConfig carries the optional parts of the router.
type RouterConfig struct {
	// AuthEnabled controls whether Bearer token auth is enforced.
	AuthEnabled bool
	Token       string
	// CORSOrigins lists the browser origins allowed to call the API.
	// Empty disables CORS handling.
	CORSOrigins []string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
	// Metrics, if non-nil, instruments every route and serves GET /metrics
	// outside the auth group.
	Metrics *metrics.Collector
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *flowservice.Service, cfg RouterConfig) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-Match"},
			ExposedHeaders:   []string{"ETag"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

		// Flow documents and their sessions. The wildcard carries the flow
		// path, optionally followed by an action segment.
		r.Get("/flows", h.ListFlows)
		r.Post("/flows", h.CreateFlow)
		r.Get("/flows/*", h.getFlowRoute)
		r.Put("/flows/*", h.SaveFlow)
		r.Post("/flows/*", h.postFlowRoute)
		r.Delete("/flows/*", h.deleteFlowRoute)

		// Catalog.
		r.Get("/templates", h.ListTemplates)
		r.Get("/templates/{typeID}", h.GetTemplate)
		r.Get("/node-types/usage", h.TypeUsage)

		r.Get("/search", h.Search)
		r.Get("/ops", h.ListOps)

		if cfg.Events != nil {
			r.Get("/events", cfg.Events.ServeHTTP)
		}
	})

	return r
}
