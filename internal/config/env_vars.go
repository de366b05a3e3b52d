package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/jrsteele09/go-sso-service/clients"
	"github.com/jrsteele09/go-sso-service/identity"
	"github.com/jrsteele09/go-sso-service/peers"
)

// EnvVars holds all environment-based configuration for a service node.
// JSON-valued variables describe the static registries: end users (IdP),
// registered clients (IdP) and peer services (all roles).
type EnvVars struct {
	Port      string `env:"PORT" envDefault:"8080"`
	AppName   string `env:"APP_NAME" envDefault:"Go SSO Service"`
	Env       string `env:"ENV" envDefault:"DEV"`
	BaseURL   string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	RoleName  string `env:"ROLE" envDefault:"rp"`
	ServiceID string `env:"SERVICE_ID" envDefault:""`

	// Session store
	SessionBackend string        `env:"SESSION_BACKEND" envDefault:"memory"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionDBPath  string        `env:"SESSION_DB_PATH" envDefault:"./data/sessions.db"`

	// Handshake
	AuthRequestTTL time.Duration `env:"AUTH_REQUEST_TTL" envDefault:"15m"`
	AuthCodeTTL    time.Duration `env:"AUTH_CODE_TTL" envDefault:"2m"`

	// RP-side upstream IdP
	IdPIssuerURL string `env:"IDP_ISSUER_URL"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
	SilentAuth   bool   `env:"SILENT_AUTH" envDefault:"true"`

	// Cross-origin and cross-window allow-lists
	AllowedOrigins string `env:"ALLOWED_ORIGINS" envDefault:""`
	OpenerOrigin   string `env:"OPENER_ORIGIN" envDefault:""`

	// Reconciliation policy shared by the fan-out dispatcher and the
	// cross-tab poller. One place, not per-call-site constants.
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"3s"`
	RetryCount     int           `env:"RETRY_COUNT" envDefault:"1"`

	// Cross-tab logout marker retention
	MarkerTTL time.Duration `env:"MARKER_TTL" envDefault:"10s"`

	// Static registries, JSON-encoded
	UsersJSON   string `env:"USERS"`
	ClientsJSON string `env:"CLIENTS"`
	PeersJSON   string `env:"PEERS"`
}

func loadEnvVars() (EnvVars, error) {
	_ = godotenv.Load()

	var vars EnvVars
	if err := env.Parse(&vars); err != nil {
		return EnvVars{}, fmt.Errorf("parsing environment: %w", err)
	}
	return vars, nil
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port != "" && port[0] != ':' {
		port = ":" + port
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

// GetBaseURL returns the externally visible base URL of this service
// (e.g. "https://idp.example.com"), used for issuer and redirect URLs.
func (e EnvVars) GetBaseURL() string {
	return strings.TrimRight(e.BaseURL, "/")
}

func (e EnvVars) GetRole() Role {
	if strings.EqualFold(e.RoleName, string(RoleIdP)) {
		return RoleIdP
	}
	return RoleRP
}

func (e EnvVars) GetServiceID() string {
	if e.ServiceID != "" {
		return e.ServiceID
	}
	return string(e.GetRole())
}

func (e EnvVars) allowedOriginSet() AllowedOrigins {
	origins := AllowedOrigins{}
	for _, origin := range strings.Split(e.AllowedOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins[origin] = struct{}{}
		}
	}
	return origins
}

// Users decodes the static end-user registry (IdP role).
func (e EnvVars) Users() ([]identity.StaticUser, error) {
	if e.UsersJSON == "" {
		return nil, nil
	}
	var users []identity.StaticUser
	if err := json.Unmarshal([]byte(e.UsersJSON), &users); err != nil {
		return nil, fmt.Errorf("parsing USERS: %w", err)
	}
	return users, nil
}

// Clients decodes the registered relying parties (IdP role).
func (e EnvVars) Clients() ([]clients.Client, error) {
	if e.ClientsJSON == "" {
		return nil, nil
	}
	var registered []clients.Client
	if err := json.Unmarshal([]byte(e.ClientsJSON), &registered); err != nil {
		return nil, fmt.Errorf("parsing CLIENTS: %w", err)
	}
	return registered, nil
}

// Peers decodes the static peer registry used for logout fan-out.
func (e EnvVars) Peers() ([]peers.Descriptor, error) {
	if e.PeersJSON == "" {
		return nil, nil
	}
	var descriptors []peers.Descriptor
	if err := json.Unmarshal([]byte(e.PeersJSON), &descriptors); err != nil {
		return nil, fmt.Errorf("parsing PEERS: %w", err)
	}
	return descriptors, nil
}
