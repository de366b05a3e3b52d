package peers

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jrsteele09/go-sso-service/internal/errors"
)

// maxEventAge bounds how long a captured notification stays replayable.
// Idempotent invalidation makes duplicates harmless; the window only limits
// how stale an accepted event can be.
const maxEventAge = 5 * time.Minute

type eventClaims struct {
	Kind    string `json:"evt"`
	Subject string `json:"logoutSubject,omitempty"`
	jwt.RegisteredClaims
}

// NewEvent builds a logout event originating at the given service.
func NewEvent(origin, subject string, now time.Time) Event {
	return Event{
		ID:        uuid.New().String(),
		Origin:    origin,
		Subject:   subject,
		Timestamp: now,
	}
}

// Sign encodes the event as an HS256 JWT under the shared secret of the
// peer link. An unauthenticated logout-notify endpoint would let any third
// party force-invalidate sessions, so every notification is signed.
func Sign(event Event, secret string) (string, error) {
	claims := eventClaims{
		Kind:    "logout",
		Subject: event.Subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       event.ID,
			Issuer:   event.Origin,
			IssuedAt: jwt.NewNumericDate(event.Timestamp),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Verify parses a signed notification against the registry: the issuer must
// be a registered peer, the signature must verify under that peer's shared
// secret, and the event must be fresh.
func (r *Registry) Verify(raw string, now time.Time) (Event, error) {
	claims := &eventClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.ErrInvalidEvent
		}
		issuer, err := token.Claims.GetIssuer()
		if err != nil {
			return nil, errors.ErrInvalidEvent
		}
		peer, err := r.Get(issuer)
		if err != nil {
			return nil, err
		}
		return []byte(peer.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Event{}, errors.Wrapf(errors.ErrInvalidEvent, "parsing logout event: %v", err)
	}

	if claims.Kind != "logout" || claims.IssuedAt == nil {
		return Event{}, errors.ErrInvalidEvent
	}
	issuedAt := claims.IssuedAt.Time
	if now.Sub(issuedAt) > maxEventAge {
		return Event{}, errors.Wrapf(errors.ErrInvalidEvent, "event too old")
	}

	return Event{
		ID:        claims.ID,
		Origin:    claims.Issuer,
		Subject:   claims.Subject,
		Timestamp: issuedAt,
	}, nil
}
