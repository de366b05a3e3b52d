package server

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-sso-service/identity"
	"github.com/jrsteele09/go-sso-service/internal/errors"
	"github.com/jrsteele09/go-sso-service/internal/metrics"
	"github.com/jrsteele09/go-sso-service/sessions"
)

// WellKnownOpenIDConfigHandler serves the discovery document relying
// parties use to locate the authorization and token endpoints. Token
// signing and JWKS are out of scope, so only the endpoint metadata is
// meaningful here.
func (s *Server) WellKnownOpenIDConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		issuer := s.config.GetBaseURL()

		resp := map[string]any{
			"issuer":                 issuer,
			"authorization_endpoint": issuer + RouteOAuth2Authorize,
			"token_endpoint":         issuer + RouteOAuth2Token,
			"end_session_endpoint":   issuer + RouteAuthLogout,

			"response_types_supported": []string{"code"},
			"response_modes_supported": []string{"query"},
			"subject_types_supported":  []string{"public"},

			"grant_types_supported": []string{"authorization_code"},

			"token_endpoint_auth_methods_supported": []string{
				"client_secret_basic",
				"client_secret_post",
			},
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// IdPLoginHandler authenticates the end user against the pluggable
// authenticator and establishes the IdP's own session. Wrong credentials
// are a 401 - reported distinctly from handshake failures.
func (s *Server) IdPLoginHandler() http.HandlerFunc {
	type loginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		claims, err := s.authenticator.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, errors.ErrInvalidCredentials) {
				writeJSON(w, http.StatusUnauthorized, map[string]any{
					"success": false,
					"message": "invalid credentials",
				})
				return
			}
			log.Error().Err(err).Msg("authenticator failed")
			http.Error(w, "authentication unavailable", http.StatusInternalServerError)
			return
		}

		session, err := s.store.Create(claims.Subject, claims.SessionAttributes())
		if err != nil {
			log.Error().Err(err).Msg("creating idp session failed")
			http.Error(w, "failed to establish session", http.StatusInternalServerError)
			return
		}
		metrics.SessionsCreated.Inc()
		s.setSessionCookie(w, r, session.Token)

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"user": statusResponse{
				LoggedIn:    true,
				Subject:     claims.Subject,
				Username:    claims.Username,
				DisplayName: claims.DisplayName,
				Attributes:  claims.Attributes,
			},
		})
	}
}

// AuthorizeHandler issues a single-use authorization code for an
// authenticated subject and redirects back to the validated redirect URI.
// Client and redirect-URI validation happen before any redirect: an
// unregistered redirect target is never redirected to, not even with an
// error parameter.
func (s *Server) AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		clientID := query.Get("client_id")
		redirectURI := query.Get("redirect_uri")
		state := query.Get("state")
		nonce := query.Get("nonce")

		client, err := s.clientRepo.Get(clientID)
		if err != nil {
			http.Error(w, "unknown client", http.StatusBadRequest)
			return
		}
		if !client.HasRedirectURI(redirectURI) {
			http.Error(w, "redirect URI not registered for client", http.StatusBadRequest)
			return
		}

		session := s.currentSession(r)
		if session == nil {
			if query.Get("prompt") == "none" {
				redirectWithParams(w, r, redirectURI, url.Values{
					"error": {"login_required"},
					"state": {state},
				})
				return
			}
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":    "login_required",
				"loginUrl": s.config.GetBaseURL() + RouteAuthLogin,
			})
			return
		}

		claims := identity.ClaimsFromSession(session.Subject, session.Attributes)
		code, err := s.codes.Issue(claims, clientID, redirectURI, nonce)
		if err != nil {
			log.Error().Err(err).Msg("issuing authorization code failed")
			http.Error(w, "failed to issue code", http.StatusInternalServerError)
			return
		}

		redirectWithParams(w, r, redirectURI, url.Values{
			"code":  {code},
			"state": {state},
		})
	}
}

// TokenHandler performs the exactly-once code exchange. The response body
// is OAuth2-shaped so a stock oauth2 client can drive the exchange; the
// identity claims and the echoed nonce ride along as extra fields. The
// access token is an opaque handle - nothing in this system verifies or
// introspects it.
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			tokenError(w, http.StatusBadRequest, "invalid_request")
			return
		}

		if grantType := r.PostFormValue("grant_type"); grantType != "authorization_code" {
			tokenError(w, http.StatusBadRequest, "unsupported_grant_type")
			return
		}

		clientID, clientSecret := clientCredentials(r)
		client, err := s.clientRepo.Get(clientID)
		if err != nil {
			tokenError(w, http.StatusUnauthorized, "invalid_client")
			return
		}
		if err := client.CheckSecret(clientSecret); err != nil {
			tokenError(w, http.StatusUnauthorized, "invalid_client")
			return
		}

		code := r.PostFormValue("code")
		redirectURI := r.PostFormValue("redirect_uri")

		claims, nonce, err := s.codes.Exchange(code, clientID, redirectURI)
		if err != nil {
			log.Warn().Err(err).Str("client", clientID).Msg("code exchange rejected")
			tokenError(w, http.StatusBadRequest, "invalid_grant")
			return
		}

		accessToken, err := sessions.NewToken()
		if err != nil {
			tokenError(w, http.StatusInternalServerError, "server_error")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": accessToken,
			"token_type":   "Bearer",
			"expires_in":   int(s.config.GetSessionTTL().Seconds()),
			"subject":      claims.Subject,
			"username":     claims.Username,
			"display_name": claims.DisplayName,
			"attributes":   claims.Attributes,
			"nonce":        nonce,
		})
	}
}

// currentSession resolves the caller's live session, nil when absent.
func (s *Server) currentSession(r *http.Request) *sessions.Session {
	token := s.sessionToken(r)
	if token == "" {
		return nil
	}
	session, err := s.store.Lookup(token)
	if err != nil {
		return nil
	}
	return session
}

func clientCredentials(r *http.Request) (string, string) {
	if id, secret, ok := r.BasicAuth(); ok {
		// Basic auth credentials are form-urlencoded per RFC 6749 2.3.1
		decodedID, errID := url.QueryUnescape(id)
		decodedSecret, errSecret := url.QueryUnescape(secret)
		if errID == nil && errSecret == nil {
			return decodedID, decodedSecret
		}
	}
	return r.PostFormValue("client_id"), r.PostFormValue("client_secret")
}

func redirectWithParams(w http.ResponseWriter, r *http.Request, redirectURI string, params url.Values) {
	target, err := url.Parse(redirectURI)
	if err != nil {
		http.Error(w, "invalid redirect URI", http.StatusBadRequest)
		return
	}
	query := target.Query()
	for key, values := range params {
		for _, value := range values {
			if value != "" {
				query.Set(key, value)
			}
		}
	}
	target.RawQuery = query.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func tokenError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
