// Package httpadapter exposes the privacy and network services over JSON/HTTP.
package httpadapter

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"antygravity/internal/ports"
	"antygravity/internal/workers/batchrunner"
)

const maxBodyBytes = 1 << 20

type Server struct {
	checker   ports.Checker
	batches   ports.Batches
	network   ports.Network
	policies  ports.Policies
	jobs      ports.JobRepository
	processor batchrunner.BatchProcessor
	auth      *Authenticator
	log       *slog.Logger

	// MaxWait bounds ?wait=true batch processing.
	MaxWait time.Duration
}

type Deps struct {
	Checker   ports.Checker
	Batches   ports.Batches
	Network   ports.Network
	Policies  ports.Policies
	Jobs      ports.JobRepository
	Processor batchrunner.BatchProcessor
	Auth      *Authenticator
	Log       *slog.Logger
}

func New(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		checker:   d.Checker,
		batches:   d.Batches,
		network:   d.Network,
		policies:  d.Policies,
		jobs:      d.Jobs,
		processor: d.Processor,
		auth:      d.Auth,
		log:       log,
		MaxWait:   30 * time.Second,
	}
}

// Routes returns the full router. Trailing slashes are accepted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.getHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Use(limitBody)

		r.Route("/privacy", func(r chi.Router) {
			r.Post("/check", s.postCheck)
			r.Get("/checks", s.listChecks)
			r.Get("/checks/{id}", s.getCheck)
			r.Get("/policies", s.listPolicies)
			r.Post("/batches", s.postBatch)
			r.Get("/batches/{id}", s.getBatch)
		})
		r.Route("/network", func(r chi.Router) {
			r.Get("/devices", s.listDevices)
			r.Get("/devices/{id}", s.getDevice)
			r.Patch("/devices/{id}", s.patchDevice)
			r.Delete("/devices/{id}", s.deleteDevice)
			r.Post("/devices/{id}/mark_trusted", s.markTrusted)
			r.Post("/devices/{id}/mark_blocked", s.markBlocked)
			r.Post("/devices/{id}/unmark", s.unmark)
			r.Get("/scans", s.listScans)
			r.Post("/scans", s.postScan)
		})
	})
	return r
}

func (s *Server) getHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"took", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}
