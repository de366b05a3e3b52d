package sessions

import "time"

// Store holds the active sessions of a single service. All invalidation
// operations are idempotent: removing a token or subject that is not present
// is a no-op, not an error. Expiry is enforced lazily on Lookup and Touch;
// Sweep additionally evicts expired entries in bulk.
type Store interface {
	// Create establishes a session for subject and returns it with a fresh token.
	Create(subject string, attributes map[string]string) (*Session, error)

	// Lookup retrieves a live session by token. An expired entry reads as
	// ErrSessionNotFound and is evicted.
	Lookup(token string) (*Session, error)

	// Touch extends a live session by the store's TTL.
	Touch(token string) error

	// Invalidate removes the session with the given token.
	Invalidate(token string) error

	// InvalidateAll removes every session in the store.
	InvalidateAll() error

	// InvalidateBySubject removes every session belonging to subject.
	InvalidateBySubject(subject string) error

	// Sweep evicts entries expired at the given time and reports how many.
	Sweep(now time.Time) int
}
