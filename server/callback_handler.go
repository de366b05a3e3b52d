package server

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-sso-service/internal/errors"
	"github.com/jrsteele09/go-sso-service/internal/metrics"
)

// relayPage notifies the opener window that the popup's handshake finished.
// The message targets only the configured origin and carries no identity or
// authorization data: the opener must confirm through /auth/status.
var relayPage = template.Must(template.New("relay").Parse(`<!DOCTYPE html>
<html>
<head><title>Login complete</title></head>
<body>
<h3>Login complete. You can close this window.</h3>
<script>
  (function () {
    var targetOrigin = {{.OpenerOrigin}};
    if (window.opener && targetOrigin) {
      window.opener.postMessage({ type: "auth-complete" }, targetOrigin);
      window.close();
    }
  })();
</script>
</body>
</html>
`))

// CallbackHandler finishes the handshake: it consumes the pending request,
// exchanges the code with the IdP, establishes the local session, and
// serves the popup relay page. Handshake failures are terminal for the
// attempt and reported distinctly - an invalid state is not "wrong
// credentials" and not silently retried.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.FormValue("state")
		code := r.FormValue("code")
		errorParam := r.FormValue("error")

		if errorParam != "" {
			http.Error(w, fmt.Sprintf("authorization failed: %s", errorParam), http.StatusBadRequest)
			return
		}
		if code == "" || state == "" {
			http.Error(w, "missing code or state parameter", http.StatusBadRequest)
			return
		}

		claims, err := s.flow.Complete(r.Context(), code, state)
		switch {
		case err == nil:
		case errors.Is(err, errors.ErrInvalidState), errors.Is(err, errors.ErrNonceMismatch):
			http.Error(w, "invalid state parameter", http.StatusBadRequest)
			return
		case errors.Is(err, errors.ErrCodeExpiredOrConsumed):
			http.Error(w, "authorization code expired or already used", http.StatusBadRequest)
			return
		default:
			log.Error().Err(err).Msg("code exchange failed")
			http.Error(w, "identity provider error", http.StatusBadGateway)
			return
		}

		session, err := s.store.Create(claims.Subject, claims.SessionAttributes())
		if err != nil {
			log.Error().Err(err).Msg("establishing session failed")
			http.Error(w, "failed to establish session", http.StatusInternalServerError)
			return
		}
		metrics.SessionsCreated.Inc()
		s.setSessionCookie(w, r, session.Token)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := relayPage.Execute(w, map[string]string{"OpenerOrigin": s.config.GetOpenerOrigin()}); err != nil {
			log.Err(err).Msg("Failed to render relay page")
		}
	}
}
