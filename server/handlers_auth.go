package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-sso-service/identity"
	"github.com/jrsteele09/go-sso-service/internal/errors"
	"github.com/jrsteele09/go-sso-service/internal/metrics"
)

const contentTypeJSON = "application/json; charset=utf-8"

type statusResponse struct {
	LoggedIn    bool              `json:"loggedIn"`
	Subject     string            `json:"subject,omitempty"`
	Username    string            `json:"username,omitempty"`
	DisplayName string            `json:"displayName,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// StatusHandler reports the caller's local login state from its session
// cookie. This is also the endpoint peers and tabs poll for reconciliation,
// and the one the Silent-Auth Bridge forwards credentials to.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := s.sessionToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, statusResponse{LoggedIn: false})
			return
		}

		session, err := s.store.Lookup(token)
		if err != nil {
			writeJSON(w, http.StatusOK, statusResponse{LoggedIn: false})
			return
		}

		// Sliding expiry: activity extends the session.
		_ = s.store.Touch(token)

		claims := identity.ClaimsFromSession(session.Subject, session.Attributes)
		writeJSON(w, http.StatusOK, statusResponse{
			LoggedIn:    true,
			Subject:     claims.Subject,
			Username:    claims.Username,
			DisplayName: claims.DisplayName,
			Attributes:  claims.Attributes,
		})
	}
}

// LogoutHandler invalidates the local session and acknowledges immediately.
// Fan-out to peers and the cross-tab broadcast happen after the response is
// already determined - local logout succeeds deterministically regardless
// of peer reachability.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := s.sessionToken(r)

		var subject string
		if token != "" {
			if session, err := s.store.Lookup(token); err == nil {
				subject = session.Subject
			}
			if err := s.store.Invalidate(token); err != nil {
				log.Error().Err(err).Msg("local session invalidation failed")
				http.Error(w, "logout failed", http.StatusInternalServerError)
				return
			}
		}
		s.clearSessionCookie(w)

		if subject != "" {
			s.hub.PublishLogout()
			// Detached from the request: the caller is not kept waiting on
			// any peer, and closing the connection does not abort delivery.
			go s.dispatcher.OnLocalLogout(context.WithoutCancel(r.Context()), subject)
		}

		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// RPLoginHandler starts the handshake: it records the in-flight request and
// hands the browser the IdP authorization URL to open in a popup.
func (s *Server) RPLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorizationURL, err := s.flow.Begin()
		if err != nil {
			log.Error().Err(err).Msg("starting handshake failed")
			http.Error(w, "failed to start login", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"authorizationUrl": authorizationURL})
	}
}

// SilentAuthHandler asks the IdP, with the caller's forwarded cookies,
// whether a session already exists there, and if so synthesizes a local
// session without the interactive handshake. An unreachable IdP reads as
// "not logged in", never an error to the caller.
func (s *Server) SilentAuthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Already logged in locally - nothing to do.
		if token := s.sessionToken(r); token != "" {
			if session, err := s.store.Lookup(token); err == nil {
				claims := identity.ClaimsFromSession(session.Subject, session.Attributes)
				writeJSON(w, http.StatusOK, statusResponse{
					LoggedIn:    true,
					Subject:     claims.Subject,
					Username:    claims.Username,
					DisplayName: claims.DisplayName,
					Attributes:  claims.Attributes,
				})
				return
			}
		}

		status, err := s.bridge.CheckUpstream(r.Context(), r.Header.Get("Cookie"))
		if err != nil && !errors.Is(err, errors.ErrUpstreamUnavailable) {
			log.Error().Err(err).Msg("silent auth check failed")
		}
		if !status.LoggedIn || status.Claims == nil {
			writeJSON(w, http.StatusOK, statusResponse{LoggedIn: false})
			return
		}

		session, err := s.store.Create(status.Claims.Subject, status.Claims.SessionAttributes())
		if err != nil {
			log.Error().Err(err).Msg("synthesizing session from silent auth failed")
			http.Error(w, "failed to establish session", http.StatusInternalServerError)
			return
		}
		metrics.SessionsCreated.Inc()
		s.setSessionCookie(w, r, session.Token)

		writeJSON(w, http.StatusOK, statusResponse{
			LoggedIn:    true,
			Subject:     status.Claims.Subject,
			Username:    status.Claims.Username,
			DisplayName: status.Claims.DisplayName,
			Attributes:  status.Claims.Attributes,
		})
	}
}

// HealthzHandler is a liveness probe.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
