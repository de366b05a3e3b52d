package server

import (
	"github.com/jrsteele09/go-sso-service/internal/config"
	"github.com/jrsteele09/go-sso-service/internal/metrics"
)

func (s *Server) initRoutes() {
	// Common auth surface
	s.RegisterRouteHandler("GET "+RouteAuthStatus, ChainMiddleware(s.StatusHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// Peer notifications: authentication happens in the handler via the
	// event signature, not via middleware.
	s.RegisterRouteFunc("POST "+RouteLogoutNotify, s.LogoutNotifyHandler())

	// Cross-tab channel
	s.RegisterRouteFunc("GET "+RouteSessionSocket, s.SessionSocketHandler())

	// Operational
	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())
	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler())

	switch s.role {
	case config.RoleIdP:
		s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.IdPLoginHandler(), s.APIMiddleware()...))
		s.RegisterRouteFunc("GET "+RouteWellKnownOpenIDConfig, s.WellKnownOpenIDConfigHandler())
		s.RegisterRouteHandler("GET "+RouteOAuth2Authorize, ChainMiddleware(s.AuthorizeHandler(), s.APIMiddleware()...))
		s.RegisterRouteFunc("POST "+RouteOAuth2Token, s.TokenHandler())
	case config.RoleRP:
		s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.RPLoginHandler(), s.APIMiddleware()...))
		s.RegisterRouteFunc("GET "+RouteAuthCallback, s.CallbackHandler())
		if s.config.GetSilentAuthEnabled() {
			s.RegisterRouteHandler("GET "+RouteAuthSilent, ChainMiddleware(s.SilentAuthHandler(), s.APIMiddleware()...))
		}
	}
}
