package errors

import (
	"errors"
	"fmt"
)

// Common error types for the SSO coordination service
var (
	// Handshake errors - terminal for the login attempt that raised them
	ErrInvalidState          = errors.New("invalid or unknown state")
	ErrCodeExpiredOrConsumed = errors.New("authorization code expired or already consumed")
	ErrRedirectURIMismatch   = errors.New("redirect URI mismatch")
	ErrNonceMismatch         = errors.New("nonce mismatch")

	// Credential errors - reported distinctly from handshake failures
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Client errors
	ErrInvalidClient       = errors.New("invalid client")
	ErrInvalidClientSecret = errors.New("invalid client secret")
	ErrInvalidRedirectURI  = errors.New("invalid redirect URI")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// Peer / fan-out errors - observability events, never surfaced to callers
	ErrPeerUnreachable = errors.New("peer unreachable")
	ErrUnknownPeer     = errors.New("unknown peer")
	ErrInvalidEvent    = errors.New("invalid logout event")

	// Silent-auth errors - treated as "not logged in", never as a crash
	ErrUpstreamUnavailable = errors.New("upstream identity provider unavailable")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
