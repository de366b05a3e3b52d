package handshake

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/jrsteele09/go-sso-service/identity"
	"github.com/jrsteele09/go-sso-service/internal/errors"
)

const codeGenerationLength = 32

// issuedCode binds a single-use authorization code to the subject, client
// and redirect URI it was issued for. Consumed entries are kept until the
// sweep so a replayed code fails the exchange instead of reading as unknown.
type issuedCode struct {
	claims      identity.Claims
	clientID    string
	redirectURI string
	nonce       string
	issuedAt    time.Time
	consumed    bool
}

// CodeIssuer is the IdP half of the Handshake Coordinator: it issues
// authorization codes after the subject has authenticated and performs the
// exactly-once code exchange.
type CodeIssuer struct {
	mu      sync.Mutex
	codes   map[string]*issuedCode
	ttl     time.Duration
	nowTime func() time.Time
}

// CodeIssuerOption modifies a CodeIssuer instance.
type CodeIssuerOption func(*CodeIssuer)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) CodeIssuerOption {
	return func(ci *CodeIssuer) {
		ci.nowTime = nowFunc
	}
}

func NewCodeIssuer(ttl time.Duration, options ...CodeIssuerOption) *CodeIssuer {
	ci := &CodeIssuer{
		codes:   make(map[string]*issuedCode),
		ttl:     ttl,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(ci)
	}
	return ci
}

// Issue generates a single-use code bound to the claims, requesting client
// and redirect URI. The nonce is echoed back to the client on exchange.
func (ci *CodeIssuer) Issue(claims identity.Claims, clientID, redirectURI, nonce string) (string, error) {
	code, err := randomValue(codeGenerationLength)
	if err != nil {
		return "", errors.Wrapf(err, "[CodeIssuer.Issue] code generation")
	}

	ci.mu.Lock()
	defer ci.mu.Unlock()

	ci.codes[code] = &issuedCode{
		claims:      claims,
		clientID:    clientID,
		redirectURI: redirectURI,
		nonce:       nonce,
		issuedAt:    ci.nowTime(),
	}
	return code, nil
}

// Exchange consumes a code. Exactly one successful exchange per code: a
// second attempt, an expired code, or an unknown code fails with
// ErrCodeExpiredOrConsumed; a client or redirect-URI mismatch fails with
// ErrRedirectURIMismatch without consuming the code for the rightful owner.
func (ci *CodeIssuer) Exchange(code, clientID, redirectURI string) (identity.Claims, string, error) {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	issued, ok := ci.codes[code]
	if !ok || issued.consumed {
		return identity.Claims{}, "", errors.ErrCodeExpiredOrConsumed
	}
	if ci.nowTime().Sub(issued.issuedAt) > ci.ttl {
		delete(ci.codes, code)
		return identity.Claims{}, "", errors.ErrCodeExpiredOrConsumed
	}
	if issued.clientID != clientID || issued.redirectURI != redirectURI {
		return identity.Claims{}, "", errors.ErrRedirectURIMismatch
	}

	issued.consumed = true
	return issued.claims, issued.nonce, nil
}

// Sweep drops expired and consumed codes and reports how many were removed.
func (ci *CodeIssuer) Sweep(now time.Time) int {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	removed := 0
	for code, issued := range ci.codes {
		if issued.consumed || now.Sub(issued.issuedAt) > ci.ttl {
			delete(ci.codes, code)
			removed++
		}
	}
	return removed
}

func randomValue(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
