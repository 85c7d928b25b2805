package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Mode    string `json:"mode,omitempty"`
}

// NewRouter mounts the browse API, /health and /metrics. Middlewares given in
// outer run before the built-in chain, in order.
func NewRouter(h *Handler, mode string, outer ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range outer {
		r.Use(mw)
	}
	r.Use(
		RequestIDMiddleware,
		RequestLogger,
		MetricsMiddleware,
		RecoveryMiddleware,
		ContentTypeMiddleware,
	)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Service: "bagbrowser", Mode: mode})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/spaces", h.ListSpaces)
	r.Get("/spaces/{space}/bags", h.ListBags)
	r.Get("/bags/{space}/*", h.GetBag)
	r.Head("/bags/{space}/*", h.HeadBag)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found", "", GetRequestID(r.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "", GetRequestID(r.Context()))
	})

	return r
}
