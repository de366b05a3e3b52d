package server

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-sso-service/crosstab"
	"github.com/jrsteele09/go-sso-service/internal/config"
)

const socketWriteTimeout = 5 * time.Second

// SessionSocketHandler attaches a browser tab to the cross-tab signal
// bridge. The tab receives logout signals broadcast by its siblings (and a
// replay of a still-fresh logout marker if it joined late), and while it is
// connected with a live session a reconciliation poller re-checks that the
// session still holds, locally and at the IdP.
func (s *Server) SessionSocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := s.sessionToken(r)
		forwardedCookies := r.Header.Get("Cookie")

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: s.originPatterns(),
		})
		if err != nil {
			log.Warn().Err(err).Msg("websocket accept failed")
			return
		}

		// Write-only connection: CloseRead surfaces the tab going away as
		// context cancellation.
		ctx := conn.CloseRead(r.Context())

		signals, cancelSub := s.hub.Subscribe()
		defer cancelSub()

		// First frame is the current auth state, so a freshly attached tab
		// can render without a separate status round trip.
		state := crosstab.AuthState{}
		if token != "" {
			if session, err := s.store.Lookup(token); err == nil {
				state = crosstab.AuthState{
					LoggedIn:   true,
					Subject:    session.Subject,
					Attributes: session.Attributes,
				}
			}
		}
		stateCtx, cancelState := context.WithTimeout(ctx, socketWriteTimeout)
		err = wsjson.Write(stateCtx, conn, state)
		cancelState()
		if err != nil {
			return
		}

		pollCtx, cancelPoll := context.WithCancel(ctx)
		defer cancelPoll()

		if token != "" {
			poller := crosstab.NewPoller(s.config.GetReconcilePolicy(), s.sessionCheck(token, forwardedCookies), func() {
				_ = s.store.Invalidate(token)
				s.hub.PublishLogout()
			})
			go poller.Run(pollCtx)
		}

		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "bye")
				return
			case signal, ok := <-signals:
				if !ok {
					conn.Close(websocket.StatusGoingAway, "bridge closed")
					return
				}
				writeCtx, cancel := context.WithTimeout(ctx, socketWriteTimeout)
				err := wsjson.Write(writeCtx, conn, signal)
				cancel()
				if err != nil {
					return
				}
				if signal.Type == crosstab.SignalLogout {
					conn.Close(websocket.StatusNormalClosure, "logged out")
					return
				}
			}
		}
	}
}

// sessionCheck builds the poller's check: the local session must still
// exist and, on an RP, the IdP must still report the upstream session as
// live. A transport failure keeps the session - only an authoritative
// "not logged in" logs the tab out.
func (s *Server) sessionCheck(token, forwardedCookies string) crosstab.CheckFunc {
	return func(ctx context.Context) (bool, error) {
		if _, err := s.store.Lookup(token); err != nil {
			return false, nil
		}
		if s.role == config.RoleRP && s.bridge != nil {
			status, err := s.bridge.CheckUpstream(ctx, forwardedCookies)
			if err != nil {
				return true, err
			}
			if !status.LoggedIn {
				return false, nil
			}
		}
		return true, nil
	}
}

// originPatterns derives the websocket origin allow-list from the
// configured CORS origins. Empty means same-origin only.
func (s *Server) originPatterns() []string {
	var patterns []string
	for origin := range s.config.GetAllowedOrigins() {
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			patterns = append(patterns, parsed.Host)
		}
	}
	return patterns
}
