// Package server wires the HTTP surface: routing, middleware, health
// probes and metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/koustreak/quizmeet/internal/database"
	"github.com/koustreak/quizmeet/internal/logger"
	"github.com/koustreak/quizmeet/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the router needs. Pool and Gatherer may be
// nil; the matching endpoints are then left out.
type Deps struct {
	Log         *logger.Logger
	Pool        *database.Pool
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics

	// Mounts maps a path prefix to its handler, e.g. "/api/tournaments".
	Mounts map[string]http.Handler
}

// NewRouter builds the root handler.
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	if d.HTTPMetrics != nil {
		r.Use(d.HTTPMetrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ALIVE"))
	})
	if d.Pool != nil {
		r.Get("/readyz", readiness(log, d.Pool))
	}
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	for prefix, h := range d.Mounts {
		r.Mount(prefix, h)
	}
	return r
}

// readiness reports READY once a connection can be borrowed and pinged.
func readiness(log *logger.Logger, pool *database.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := pool.WithConn(r.Context(), func(ctx context.Context, conn database.Conn) error {
			return conn.Ping(ctx)
		})
		if err != nil {
			log.WarnWith("readiness check failed", err, nil)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.HTTPEvent().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
