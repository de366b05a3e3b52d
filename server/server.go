package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-sso-service/clients"
	"github.com/jrsteele09/go-sso-service/crosstab"
	"github.com/jrsteele09/go-sso-service/handshake"
	"github.com/jrsteele09/go-sso-service/handshake/authrequests"
	"github.com/jrsteele09/go-sso-service/identity"
	"github.com/jrsteele09/go-sso-service/internal/config"
	"github.com/jrsteele09/go-sso-service/logout"
	"github.com/jrsteele09/go-sso-service/peers"
	"github.com/jrsteele09/go-sso-service/sessions"
	"github.com/jrsteele09/go-sso-service/silentauth"
)

// Server is one SSO service node. Depending on the configured role it
// serves the IdP surface (authorize, token, discovery) or the RP surface
// (login redirect, callback, silent auth); the session, logout and
// cross-tab surfaces are common to both.
type Server struct {
	env    string // Environment (e.g., "DEV", "production")
	role   config.Role
	mux    *http.ServeMux
	routes []string
	config config.Config

	store      sessions.Store
	dispatcher *logout.Dispatcher
	registry   *peers.Registry
	hub        *crosstab.Hub

	// IdP role
	authenticator identity.Authenticator
	clientRepo    clients.Repo
	codes         *handshake.CodeIssuer

	// RP role
	flow   *handshake.Flow
	bridge *silentauth.Bridge
}

// Deps carries the role-appropriate collaborators into New. Common fields
// are always required; the IdP and RP groups only for their role.
type Deps struct {
	Store      sessions.Store
	Dispatcher *logout.Dispatcher
	Registry   *peers.Registry
	Hub        *crosstab.Hub

	Authenticator identity.Authenticator
	ClientRepo    clients.Repo
	Codes         *handshake.CodeIssuer

	Flow   *handshake.Flow
	Bridge *silentauth.Bridge
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("[Server New] session store is required")
	}
	if deps.Dispatcher == nil || deps.Registry == nil {
		return nil, fmt.Errorf("[Server New] logout dispatcher and peer registry are required")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("[Server New] cross-tab hub is required")
	}

	s := &Server{
		mux:        http.NewServeMux(),
		config:     cfg,
		role:       cfg.GetRole(),
		env:        cfg.GetEnv(),
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		registry:   deps.Registry,
		hub:        deps.Hub,

		authenticator: deps.Authenticator,
		clientRepo:    deps.ClientRepo,
		codes:         deps.Codes,

		flow:   deps.Flow,
		bridge: deps.Bridge,
	}

	switch s.role {
	case config.RoleIdP:
		if s.authenticator == nil || s.clientRepo == nil || s.codes == nil {
			return nil, fmt.Errorf("[Server New] idp role requires authenticator, client repo and code issuer")
		}
	case config.RoleRP:
		if s.flow == nil {
			return nil, fmt.Errorf("[Server New] rp role requires a handshake flow")
		}
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

// NewRPFlow wires the RP-side handshake flow against the configured IdP,
// discovering its endpoints from the discovery document.
func NewRPFlow(ctx context.Context, cfg config.Config, requests authrequests.Repo) (*handshake.Flow, error) {
	endpoint, err := handshake.DiscoverEndpoint(ctx, cfg.GetIdPIssuerURL())
	if err != nil {
		return nil, fmt.Errorf("[NewRPFlow] discovering idp endpoints: %w", err)
	}
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.GetClientID(),
		ClientSecret: cfg.GetClientSecret(),
		Endpoint:     endpoint,
		RedirectURL:  cfg.GetRedirectURL(),
	}
	return handshake.NewFlow(oauthConfig, requests, cfg.GetAuthRequestTTL())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
