package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth surface (both roles)
	RouteAuthStatus = "/auth/status"
	RouteAuthLogin  = "/auth/login"
	RouteAuthLogout = "/auth/logout"

	// RP-only
	RouteAuthCallback = "/auth/callback"
	RouteAuthSilent   = "/auth/silent"

	// IdP-only
	RouteWellKnownOpenIDConfig = "/.well-known/openid-configuration"
	RouteOAuth2Authorize       = "/oauth2/authorize"
	RouteOAuth2Token           = "/oauth2/token"

	// Peer-only, signed-request authenticated
	RouteLogoutNotify = "/internal/logout-notify"

	// Same-origin cross-tab channel
	RouteSessionSocket = "/ws/session"

	// Operational
	RouteMetrics = "/metrics"
	RouteHealthz = "/healthz"
)
