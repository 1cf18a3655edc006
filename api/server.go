/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the reporting frontend

ROUTE GROUPS:
  /api/projects/*   Project, baseline, rubro, payroll and forecast routes
  /api/dashboard/*  Portfolio aggregations
  /api/taxonomy     Reference data
  /api/health       Liveness

SECURITY NOTE:
  No authentication middleware here; authorization is handled upstream
  of this engine.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/projects", func(r chi.Router) {
			r.Post("/", h.CreateProject)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/forecast", h.GetForecast)
				r.Get("/rubros", h.ListRubros)

				r.Route("/baselines", func(r chi.Router) {
					r.Post("/", h.CreateBaseline)
					r.Post("/{bid}/handoff", h.HandoffBaseline)
					r.Post("/{bid}/accept", h.AcceptBaseline)
				})

				r.Route("/payroll", func(r chi.Router) {
					r.Get("/", h.ListPayroll)
					r.Post("/", h.CreatePayroll)
					r.Post("/bulk", h.BulkPayroll)
					r.Get("/summary", h.GetPayrollSummary)
				})
			})
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/mod-by-month", h.DashboardMODByMonth)
		})

		r.Get("/taxonomy", h.ListTaxonomy)
		r.Get("/health", h.Health)
	})

	return r
}
