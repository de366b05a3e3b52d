package sessions

import (
	"sync"
	"time"

	"github.com/jrsteele09/go-sso-service/internal/errors"
)

// InMemoryStore is the default Store implementation: a mutex-guarded map
// with a subject index. Operations on a single token are linearizable under
// the store lock.
type InMemoryStore struct {
	mu        sync.Mutex
	sessions  map[string]Session
	bySubject map[string]map[string]struct{} // subject -> token set
	ttl       time.Duration
	nowTime   func() time.Time // injectable for testing
}

// InMemoryStoreOption modifies an InMemoryStore instance.
type InMemoryStoreOption func(*InMemoryStore)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) InMemoryStoreOption {
	return func(s *InMemoryStore) {
		s.nowTime = nowFunc
	}
}

func NewInMemoryStore(ttl time.Duration, options ...InMemoryStoreOption) *InMemoryStore {
	s := &InMemoryStore{
		sessions:  make(map[string]Session),
		bySubject: make(map[string]map[string]struct{}),
		ttl:       ttl,
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Create(subject string, attributes map[string]string) (*Session, error) {
	token, err := NewToken()
	if err != nil {
		return nil, errors.Wrapf(err, "[InMemoryStore.Create] token generation")
	}

	now := s.nowTime()
	session := Session{
		Token:      token,
		Subject:    subject,
		Attributes: copyAttributes(attributes),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[token] = session
	if _, ok := s.bySubject[subject]; !ok {
		s.bySubject[subject] = make(map[string]struct{})
	}
	s.bySubject[subject][token] = struct{}{}

	copied := session
	return &copied, nil
}

func (s *InMemoryStore) Lookup(token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	if session.Expired(s.nowTime()) {
		s.removeLocked(token)
		return nil, errors.ErrSessionNotFound
	}

	// Return a copy to prevent external modifications
	copied := session
	copied.Attributes = copyAttributes(session.Attributes)
	return &copied, nil
}

func (s *InMemoryStore) Touch(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return errors.ErrSessionNotFound
	}
	now := s.nowTime()
	if session.Expired(now) {
		s.removeLocked(token)
		return errors.ErrSessionNotFound
	}
	session.ExpiresAt = now.Add(s.ttl)
	s.sessions[token] = session
	return nil
}

func (s *InMemoryStore) Invalidate(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(token)
	return nil
}

func (s *InMemoryStore) InvalidateAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]Session)
	s.bySubject = make(map[string]map[string]struct{})
	return nil
}

func (s *InMemoryStore) InvalidateBySubject(subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token := range s.bySubject[subject] {
		delete(s.sessions, token)
	}
	delete(s.bySubject, subject)
	return nil
}

func (s *InMemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for token, session := range s.sessions {
		if session.Expired(now) {
			s.removeLocked(token)
			evicted++
		}
	}
	return evicted
}

// removeLocked deletes a session and its subject-index entry. Caller holds the lock.
func (s *InMemoryStore) removeLocked(token string) {
	session, ok := s.sessions[token]
	if !ok {
		return
	}
	delete(s.sessions, token)
	if tokens, ok := s.bySubject[session.Subject]; ok {
		delete(tokens, token)
		if len(tokens) == 0 {
			delete(s.bySubject, session.Subject)
		}
	}
}

func copyAttributes(attributes map[string]string) map[string]string {
	if attributes == nil {
		return nil
	}
	copied := make(map[string]string, len(attributes))
	for k, v := range attributes {
		copied[k] = v
	}
	return copied
}
