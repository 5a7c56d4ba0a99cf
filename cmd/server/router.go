package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ewhitley/certscan-api/internal/api"
	apimw "github.com/ewhitley/certscan-api/internal/api/middleware"
)

// setupRouter configures the application router with all routes and
// middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apimw.Trace)

	certHandler := api.NewCertificateHandler(app.admission)
	opsHandler := api.NewOpsHandler(app.admission, app.registry)

	r.Route("/api", func(r chi.Router) {
		r.Post("/certificates", certHandler.Submit)
		r.Get("/certificates/{request_id}", certHandler.Status)
		r.Post("/certificates/{request_id}/cancel", certHandler.Cancel)
	})

	r.Get("/healthz", opsHandler.Healthz)
	r.Get("/metrics", opsHandler.Metrics)

	return r
}
