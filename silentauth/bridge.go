package silentauth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-sso-service/identity"
	"github.com/jrsteele09/go-sso-service/internal/config"
	"github.com/jrsteele09/go-sso-service/internal/errors"
)

// Status is the IdP's answer to an upstream session check.
type Status struct {
	LoggedIn bool             `json:"loggedIn"`
	Claims   *identity.Claims `json:"claims,omitempty"`
}

// Bridge asks the IdP whether the caller already holds a live session
// there, using the caller's forwarded credential material (its IdP-scoped
// cookies). The RP may then synthesize a local session without the
// interactive handshake. The trust shortcut is deliberate and gated by
// configuration: the status response is fetched by the RP itself over the
// server-to-server channel, never taken from client-asserted data.
type Bridge struct {
	statusURL string
	client    *http.Client
	policy    config.ReconcilePolicy
}

func NewBridge(idpBaseURL string, policy config.ReconcilePolicy) *Bridge {
	return &Bridge{
		statusURL: idpBaseURL + "/auth/status",
		client:    &http.Client{Timeout: policy.RequestTimeout},
		policy:    policy,
	}
}

// CheckUpstream forwards the caller's cookies to the IdP status endpoint.
// An unreachable IdP reads as "not logged in" with ErrUpstreamUnavailable -
// never a crash, and never a fabricated login.
func (b *Bridge) CheckUpstream(ctx context.Context, forwardedCookies string) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.statusURL, nil)
	if err != nil {
		return Status{}, errors.Wrapf(err, "[Bridge.CheckUpstream] building request")
	}
	if forwardedCookies != "" {
		req.Header.Set("Cookie", forwardedCookies)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("url", b.statusURL).Msg("silent-auth upstream check failed")
		return Status{LoggedIn: false}, errors.ErrUpstreamUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("url", b.statusURL).Msg("silent-auth upstream returned non-200")
		return Status{LoggedIn: false}, errors.ErrUpstreamUnavailable
	}

	var status struct {
		LoggedIn    bool              `json:"loggedIn"`
		Subject     string            `json:"subject"`
		Username    string            `json:"username"`
		DisplayName string            `json:"displayName"`
		Attributes  map[string]string `json:"attributes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return Status{LoggedIn: false}, errors.ErrUpstreamUnavailable
	}

	if !status.LoggedIn || status.Subject == "" {
		return Status{LoggedIn: false}, nil
	}
	return Status{
		LoggedIn: true,
		Claims: &identity.Claims{
			Subject:     status.Subject,
			Username:    status.Username,
			DisplayName: status.DisplayName,
			Attributes:  status.Attributes,
		},
	}, nil
}
