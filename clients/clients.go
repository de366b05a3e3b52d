package clients

import "github.com/jrsteele09/go-sso-service/internal/errors"

// Client describes a relying party registered with the identity provider.
// The registry is static: loaded once at startup from configuration.
type Client struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Secret       string   `json:"secret"`
	RedirectURIs []string `json:"redirectURIs"`
}

// HasRedirectURI checks an exact match against the registered redirect URIs.
// Prefix or wildcard matching would open redirect-based code interception.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// CheckSecret validates the client secret presented on a code exchange.
func (c *Client) CheckSecret(secret string) error {
	if secret == "" || secret != c.Secret {
		return errors.ErrInvalidClientSecret
	}
	return nil
}
