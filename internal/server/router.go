// ABOUTME: chi router for the adapter host
// ABOUTME: Installs request middleware and mounts the messaging, notify, transcript and operational routes

package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/coven-adapter/internal/auth"
)

// maxActivityBody bounds inbound activity payloads.
const maxActivityBody = 1 << 20

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// Metrics first so every request is counted.
	r.Use(Metrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(Logger(s.logger))
	r.Use(chimw.Recoverer)

	if s.config.Metrics.Enabled {
		r.Handle(s.config.Metrics.Path, promhttp.Handler())
	}

	r.Get("/health", s.handleHealth)

	// The adapter answers non-POST methods itself.
	r.With(chimw.RequestSize(maxActivityBody)).Handle("/api/messages", s.adapter.HTTPHandler(s.opts.Bot))

	// Operator routes reach every stored conversation; they need the admin token.
	operator := s.opts.Transcripts != nil || (s.opts.References != nil && s.opts.Notify != nil)
	if operator && s.config.Admin.Token == "" {
		s.logger.Warn("admin.token not set, /api/notify and /api/transcript are disabled")
	} else if operator {
		admin := r.With(auth.RequireAdminToken(s.config.Admin.Token))
		if s.opts.References != nil && s.opts.Notify != nil {
			admin.Get("/api/notify", s.handleNotify)
			admin.Post("/api/notify", s.handleNotify)
		}
		if s.opts.Transcripts != nil {
			admin.Get("/api/transcript", s.handleTranscript)
		}
	}

	return r
}
