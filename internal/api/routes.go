package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/zoravur/sqlbind/pkg/session"
)

// Deps is what the routes need from the running server.
type Deps struct {
	Session  *session.Session
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.L()
	}
	h := &handlers{s: d.Session}

	r := chi.NewRouter()
	r.Use(LoggingMiddleware(d.Log))

	r.Get("/healthz", h.health)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/convert", h.convert)
		r.Route("/tables/{table}", func(r chi.Router) {
			r.Get("/schema", h.schema)
			r.Post("/insert", h.write(opInsert))
			r.Post("/update", h.write(opUpdate))
		})
	})

	return r
}
