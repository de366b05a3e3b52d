package sessions

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/jrsteele09/go-sso-service/internal/errors"
)

const (
	// boltFilePerm is the permission mode for the session database file.
	boltFilePerm = fs.FileMode(0o600)

	// boltOpenTimeout is the maximum time to wait for the bolt database lock.
	boltOpenTimeout = 5 * time.Second
)

var (
	sessionsBucket = []byte("sessions")
	subjectsBucket = []byte("subjects")
)

// subjectKey indexes a token under its subject. The separator cannot appear
// in base64url tokens, so keys never collide across subjects.
func subjectKey(subject, token string) []byte {
	return []byte(subject + "\x00" + token)
}

// BoltStore is a bbolt-backed Store for deployments that need sessions to
// survive a process restart. Wire compatible with InMemoryStore through the
// Store interface; the Handshake Coordinator never sees the difference.
type BoltStore struct {
	db      *bolt.DB
	ttl     time.Duration
	nowTime func() time.Time
}

func NewBoltStore(path string, ttl time.Duration) (*BoltStore, error) {
	db, err := bolt.Open(path, boltFilePerm, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, errors.Wrapf(err, "[NewBoltStore] opening %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(sessionsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(subjectsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "[NewBoltStore] creating buckets")
	}

	return &BoltStore{db: db, ttl: ttl, nowTime: time.Now}, nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Create(subject string, attributes map[string]string) (*Session, error) {
	token, err := NewToken()
	if err != nil {
		return nil, errors.Wrapf(err, "[BoltStore.Create] token generation")
	}

	now := s.nowTime()
	session := Session{
		Token:      token,
		Subject:    subject,
		Attributes: copyAttributes(attributes),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return putSession(tx, &session)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "[BoltStore.Create] db update")
	}
	return &session, nil
}

func (s *BoltStore) Lookup(token string) (*Session, error) {
	var session *Session
	err := s.db.Update(func(tx *bolt.Tx) error {
		found, err := getSession(tx, token)
		if err != nil || found == nil {
			return err
		}
		if found.Expired(s.nowTime()) {
			return deleteSession(tx, found)
		}
		session = found
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "[BoltStore.Lookup] db update")
	}
	if session == nil {
		return nil, errors.ErrSessionNotFound
	}
	return session, nil
}

func (s *BoltStore) Touch(token string) error {
	touched := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		found, err := getSession(tx, token)
		if err != nil || found == nil {
			return err
		}
		now := s.nowTime()
		if found.Expired(now) {
			return deleteSession(tx, found)
		}
		found.ExpiresAt = now.Add(s.ttl)
		touched = true
		return putSession(tx, found)
	})
	if err != nil {
		return errors.Wrapf(err, "[BoltStore.Touch] db update")
	}
	if !touched {
		return errors.ErrSessionNotFound
	}
	return nil
}

func (s *BoltStore) Invalidate(token string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		found, err := getSession(tx, token)
		if err != nil || found == nil {
			return err
		}
		return deleteSession(tx, found)
	})
	return errors.Wrapf(err, "[BoltStore.Invalidate] db update")
}

func (s *BoltStore) InvalidateAll() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(sessionsBucket); err != nil {
			return err
		}
		if err := tx.DeleteBucket(subjectsBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucket(sessionsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(subjectsBucket)
		return err
	})
	return errors.Wrapf(err, "[BoltStore.InvalidateAll] db update")
}

func (s *BoltStore) InvalidateBySubject(subject string) error {
	prefix := subjectKey(subject, "")
	err := s.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(subjectsBucket)
		store := tx.Bucket(sessionsBucket)

		var indexKeys [][]byte
		var tokens [][]byte
		c := index.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			indexKeys = append(indexKeys, append([]byte(nil), k...))
			tokens = append(tokens, append([]byte(nil), v...))
		}
		for i := range indexKeys {
			if err := index.Delete(indexKeys[i]); err != nil {
				return err
			}
			if err := store.Delete(tokens[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrapf(err, "[BoltStore.InvalidateBySubject] db update")
}

func (s *BoltStore) Sweep(now time.Time) int {
	evicted := 0
	_ = s.db.Update(func(tx *bolt.Tx) error {
		store := tx.Bucket(sessionsBucket)

		var expired []*Session
		err := store.ForEach(func(_, v []byte) error {
			var session Session
			if err := json.Unmarshal(v, &session); err != nil {
				return err
			}
			if session.Expired(now) {
				expired = append(expired, &session)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, session := range expired {
			if err := deleteSession(tx, session); err != nil {
				return err
			}
			evicted++
		}
		return nil
	})
	return evicted
}

func putSession(tx *bolt.Tx, session *Session) error {
	encoded, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := tx.Bucket(sessionsBucket).Put([]byte(session.Token), encoded); err != nil {
		return err
	}
	return tx.Bucket(subjectsBucket).Put(subjectKey(session.Subject, session.Token), []byte(session.Token))
}

func getSession(tx *bolt.Tx, token string) (*Session, error) {
	raw := tx.Bucket(sessionsBucket).Get([]byte(token))
	if raw == nil {
		return nil, nil
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func deleteSession(tx *bolt.Tx, session *Session) error {
	if err := tx.Bucket(sessionsBucket).Delete([]byte(session.Token)); err != nil {
		return err
	}
	return tx.Bucket(subjectsBucket).Delete(subjectKey(session.Subject, session.Token))
}
