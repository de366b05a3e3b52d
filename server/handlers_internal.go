package server

import (
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-sso-service/internal/metrics"
)

const maxEventBody = 16 * 1024

// LogoutNotifyHandler receives signed logout events from registered peers.
// The signature is the authentication: an event that does not verify
// against a registered peer's shared secret is discarded before any local
// state is touched. Duplicate deliveries are harmless - invalidation is
// idempotent. Received events are never re-fanned-out (no propagation
// loops).
func (s *Server) LogoutNotifyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
		if err != nil {
			http.Error(w, "unreadable body", http.StatusBadRequest)
			return
		}

		event, err := s.registry.Verify(string(raw), time.Now())
		if err != nil {
			metrics.LogoutEventsReceived.WithLabelValues("rejected").Inc()
			log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("rejected logout notification")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if event.Subject != "" {
			err = s.store.InvalidateBySubject(event.Subject)
		} else {
			// Degraded mode: a subjectless event invalidates everything
			// local rather than risk keeping a dead login alive.
			err = s.store.InvalidateAll()
		}
		if err != nil {
			metrics.LogoutEventsReceived.WithLabelValues("error").Inc()
			log.Error().Err(err).Str("event", event.ID).Msg("applying logout event failed")
			http.Error(w, "invalidation failed", http.StatusInternalServerError)
			return
		}

		s.hub.PublishLogout()
		metrics.LogoutEventsReceived.WithLabelValues("applied").Inc()
		log.Info().
			Str("event", event.ID).
			Str("origin", event.Origin).
			Str("subject", event.Subject).
			Msg("applied peer logout event")

		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
