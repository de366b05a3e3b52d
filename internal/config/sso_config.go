package config

import (
	"time"

	"github.com/jrsteele09/go-sso-service/clients"
	"github.com/jrsteele09/go-sso-service/identity"
	"github.com/jrsteele09/go-sso-service/peers"
)

type SSOConfig interface {
	GetSessionBackend() string
	GetSessionTTL() time.Duration
	GetSessionDBPath() string
	GetAuthRequestTTL() time.Duration
	GetAuthCodeTTL() time.Duration
	GetIdPIssuerURL() string
	GetClientID() string
	GetClientSecret() string
	GetRedirectURL() string
	GetSilentAuthEnabled() bool
	GetOpenerOrigin() string
	GetUsers() ([]identity.StaticUser, error)
	GetClients() ([]clients.Client, error)
	GetPeers() ([]peers.Descriptor, error)
}

type SSO struct {
	vars EnvVars
}

var _ SSOConfig = SSO{}

func (s SSO) GetSessionBackend() string {
	return s.vars.SessionBackend
}

func (s SSO) GetSessionTTL() time.Duration {
	return s.vars.SessionTTL
}

func (s SSO) GetSessionDBPath() string {
	return s.vars.SessionDBPath
}

func (s SSO) GetAuthRequestTTL() time.Duration {
	return s.vars.AuthRequestTTL
}

func (s SSO) GetAuthCodeTTL() time.Duration {
	return s.vars.AuthCodeTTL
}

func (s SSO) GetIdPIssuerURL() string {
	return s.vars.IdPIssuerURL
}

func (s SSO) GetClientID() string {
	return s.vars.ClientID
}

func (s SSO) GetClientSecret() string {
	return s.vars.ClientSecret
}

func (s SSO) GetRedirectURL() string {
	return s.vars.RedirectURL
}

func (s SSO) GetSilentAuthEnabled() bool {
	return s.vars.SilentAuth
}

// GetOpenerOrigin is the only origin the callback relay page will
// postMessage to. Empty disables the relay message entirely.
func (s SSO) GetOpenerOrigin() string {
	return s.vars.OpenerOrigin
}

func (s SSO) GetUsers() ([]identity.StaticUser, error) {
	return s.vars.Users()
}

func (s SSO) GetClients() ([]clients.Client, error) {
	return s.vars.Clients()
}

func (s SSO) GetPeers() ([]peers.Descriptor, error) {
	return s.vars.Peers()
}
