package handshake_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso-service/handshake"
	"github.com/jrsteele09/go-sso-service/identity"
	"github.com/jrsteele09/go-sso-service/internal/errors"
)

const (
	testClientID    = "service-b"
	testRedirectURI = "http://localhost:3001/auth/callback"
	testNonce       = "random-nonce-value"
	testCodeTTL     = 2 * time.Minute
)

func testClaims() identity.Claims {
	return identity.Claims{
		Subject:     "user-1",
		Username:    "john.doe",
		DisplayName: "John Doe",
	}
}

func TestIssueAndExchange(t *testing.T) {
	issuer := handshake.NewCodeIssuer(testCodeTTL)

	code, err := issuer.Issue(testClaims(), testClientID, testRedirectURI, testNonce)
	require.NoError(t, err)
	require.NotEmpty(t, code)

	claims, nonce, err := issuer.Exchange(code, testClientID, testRedirectURI)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, testNonce, nonce)
}

func TestExchangeIsSingleUse(t *testing.T) {
	issuer := handshake.NewCodeIssuer(testCodeTTL)

	code, err := issuer.Issue(testClaims(), testClientID, testRedirectURI, testNonce)
	require.NoError(t, err)

	_, _, err = issuer.Exchange(code, testClientID, testRedirectURI)
	require.NoError(t, err)

	_, _, err = issuer.Exchange(code, testClientID, testRedirectURI)
	require.ErrorIs(t, err, errors.ErrCodeExpiredOrConsumed)
}

func TestExchangeUnknownCode(t *testing.T) {
	issuer := handshake.NewCodeIssuer(testCodeTTL)

	_, _, err := issuer.Exchange("never-issued", testClientID, testRedirectURI)
	require.ErrorIs(t, err, errors.ErrCodeExpiredOrConsumed)
}

func TestExchangeExpiredCode(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := handshake.NewCodeIssuer(testCodeTTL, handshake.WithNowTime(func() time.Time { return now }))

	code, err := issuer.Issue(testClaims(), testClientID, testRedirectURI, testNonce)
	require.NoError(t, err)

	now = now.Add(testCodeTTL + time.Second)
	_, _, err = issuer.Exchange(code, testClientID, testRedirectURI)
	require.ErrorIs(t, err, errors.ErrCodeExpiredOrConsumed)
}

func TestExchangeMismatchDoesNotConsume(t *testing.T) {
	issuer := handshake.NewCodeIssuer(testCodeTTL)

	code, err := issuer.Issue(testClaims(), testClientID, testRedirectURI, testNonce)
	require.NoError(t, err)

	_, _, err = issuer.Exchange(code, "other-client", testRedirectURI)
	require.ErrorIs(t, err, errors.ErrRedirectURIMismatch)

	_, _, err = issuer.Exchange(code, testClientID, "http://evil.example/callback")
	require.ErrorIs(t, err, errors.ErrRedirectURIMismatch)

	// The rightful owner can still exchange.
	claims, _, err := issuer.Exchange(code, testClientID, testRedirectURI)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
}

func TestExchangeConcurrentSingleWinner(t *testing.T) {
	issuer := handshake.NewCodeIssuer(testCodeTTL)

	code, err := issuer.Issue(testClaims(), testClientID, testRedirectURI, testNonce)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := issuer.Exchange(code, testClientID, testRedirectURI); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, successes)
}

func TestSweepRemovesConsumedAndExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := handshake.NewCodeIssuer(testCodeTTL, handshake.WithNowTime(func() time.Time { return now }))

	consumed, err := issuer.Issue(testClaims(), testClientID, testRedirectURI, testNonce)
	require.NoError(t, err)
	_, _, err = issuer.Exchange(consumed, testClientID, testRedirectURI)
	require.NoError(t, err)

	expired, err := issuer.Issue(testClaims(), testClientID, testRedirectURI, testNonce)
	require.NoError(t, err)

	now = now.Add(testCodeTTL + time.Second)
	live, err := issuer.Issue(testClaims(), testClientID, testRedirectURI, testNonce)
	require.NoError(t, err)

	require.Equal(t, 2, issuer.Sweep(now))

	_, _, err = issuer.Exchange(expired, testClientID, testRedirectURI)
	require.ErrorIs(t, err, errors.ErrCodeExpiredOrConsumed)
	_, _, err = issuer.Exchange(live, testClientID, testRedirectURI)
	require.NoError(t, err)
}
