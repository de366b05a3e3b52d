package sessions

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

const tokenLength = 32 // bytes of entropy per token, 256 bits

// Session is a local login session. Owned exclusively by the store of the
// service that created it; services never share token values. Sessions for
// the same subject at different services are linked only by Subject.
type Session struct {
	Token      string            `json:"token"`
	Subject    string            `json:"subject"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	ExpiresAt  time.Time         `json:"expiresAt"`
}

// Expired reports whether the session has passed its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// NewToken generates an unguessable session token from a cryptographically
// strong random source.
func NewToken() (string, error) {
	bytes := make([]byte, tokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
