// Package http arma el router del servicio: el endpoint de reentry más las
// rutas operativas (health, metrics) y los middlewares transversales.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/reentry/internal/http/controllers/login"
	"github.com/dropDatabas3/reentry/internal/rate"
)

// RouterDeps contiene las dependencias del router.
type RouterDeps struct {
	Login   *login.ReentryController
	Metrics http.Handler
	CORS    []string
	Limiter rate.Limiter // opcional: limita /auth/reentry por IP
}

// NewRouter registra todas las rutas del servicio.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(WithRequestID)
	r.Use(WithRecover)
	r.Use(WithSecurityHeaders)
	r.Use(WithLogging)
	r.Use(WithMetrics)
	if len(deps.CORS) > 0 {
		cors := deps.CORS
		r.Use(func(next http.Handler) http.Handler {
			return WithCORS(next, cors)
		})
	}

	r.Get("/healthz", healthHandler)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	reentry := http.Handler(http.HandlerFunc(deps.Login.Reentry))
	if deps.Limiter != nil {
		reentry = WithRateLimit(reentry, deps.Limiter)
	}
	r.Method(http.MethodGet, "/auth/reentry", reentry)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
