package identity

import "context"

// Claims is the identity claim set the IdP returns to a successfully
// authenticated relying party. Immutable once issued for a given
// authorization code.
type Claims struct {
	Subject     string            `json:"subject"`
	Username    string            `json:"username"`
	DisplayName string            `json:"displayName"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Authenticator verifies end-user credentials at the identity provider.
// How the subject is actually authenticated (password, LDAP, upstream IdP)
// is pluggable; the handshake only needs the resulting claims.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (Claims, error)
}

// Attribute keys under which the claim fields travel inside a session's
// attribute map.
const (
	AttrUsername    = "username"
	AttrDisplayName = "displayName"
)

// SessionAttributes flattens the claims into a session attribute map.
func (c Claims) SessionAttributes() map[string]string {
	attributes := make(map[string]string, len(c.Attributes)+2)
	for k, v := range c.Attributes {
		attributes[k] = v
	}
	if c.Username != "" {
		attributes[AttrUsername] = c.Username
	}
	if c.DisplayName != "" {
		attributes[AttrDisplayName] = c.DisplayName
	}
	return attributes
}

// ClaimsFromSession rebuilds claims from a session's subject and attributes.
func ClaimsFromSession(subject string, attributes map[string]string) Claims {
	claims := Claims{Subject: subject}
	if len(attributes) == 0 {
		return claims
	}
	claims.Attributes = make(map[string]string, len(attributes))
	for k, v := range attributes {
		switch k {
		case AttrUsername:
			claims.Username = v
		case AttrDisplayName:
			claims.DisplayName = v
		default:
			claims.Attributes[k] = v
		}
	}
	if len(claims.Attributes) == 0 {
		claims.Attributes = nil
	}
	return claims
}
