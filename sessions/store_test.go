package sessions_test

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso-service/internal/errors"
	"github.com/jrsteele09/go-sso-service/sessions"
)

const (
	testSubject      = "user-1"
	testOtherSubject = "user-2"
	testTTL          = time.Hour
)

// testClock is an adjustable time source for expiry tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupTestStore(t *testing.T) (*sessions.InMemoryStore, *testClock) {
	t.Helper()
	clock := newTestClock()
	store := sessions.NewInMemoryStore(testTTL, sessions.WithNowTime(clock.Now))
	return store, clock
}

func TestCreateAndLookup(t *testing.T) {
	store, _ := setupTestStore(t)

	created, err := store.Create(testSubject, map[string]string{"username": "john"})
	require.NoError(t, err)
	require.NotEmpty(t, created.Token)
	require.Equal(t, testSubject, created.Subject)

	found, err := store.Lookup(created.Token)
	require.NoError(t, err)
	require.Equal(t, created.Token, found.Token)
	require.Equal(t, "john", found.Attributes["username"])
}

func TestLookupUnknownToken(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.Lookup("no-such-token")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestTokensAreUnique(t *testing.T) {
	store, _ := setupTestStore(t)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		session, err := store.Create(testSubject, nil)
		require.NoError(t, err)
		require.False(t, seen[session.Token])
		seen[session.Token] = true
	}
}

func TestLookupAfterExpiry(t *testing.T) {
	store, clock := setupTestStore(t)

	created, err := store.Create(testSubject, nil)
	require.NoError(t, err)

	clock.Advance(testTTL + time.Minute)

	_, err = store.Lookup(created.Token)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestTouchExtendsExpiry(t *testing.T) {
	store, clock := setupTestStore(t)

	created, err := store.Create(testSubject, nil)
	require.NoError(t, err)

	// Touch at the halfway mark pushes expiry past the original deadline.
	clock.Advance(testTTL / 2)
	require.NoError(t, store.Touch(created.Token))

	clock.Advance(testTTL / 2)
	_, err = store.Lookup(created.Token)
	require.NoError(t, err)
}

func TestTouchExpiredSession(t *testing.T) {
	store, clock := setupTestStore(t)

	created, err := store.Create(testSubject, nil)
	require.NoError(t, err)

	clock.Advance(testTTL + time.Minute)
	require.ErrorIs(t, store.Touch(created.Token), errors.ErrSessionNotFound)
}

func TestInvalidateIsIdempotent(t *testing.T) {
	store, _ := setupTestStore(t)

	created, err := store.Create(testSubject, nil)
	require.NoError(t, err)

	require.NoError(t, store.Invalidate(created.Token))
	require.NoError(t, store.Invalidate(created.Token))
	require.NoError(t, store.Invalidate("never-existed"))

	_, err = store.Lookup(created.Token)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestInvalidateBySubject(t *testing.T) {
	store, _ := setupTestStore(t)

	first, err := store.Create(testSubject, nil)
	require.NoError(t, err)
	second, err := store.Create(testSubject, nil)
	require.NoError(t, err)
	other, err := store.Create(testOtherSubject, nil)
	require.NoError(t, err)

	require.NoError(t, store.InvalidateBySubject(testSubject))

	_, err = store.Lookup(first.Token)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
	_, err = store.Lookup(second.Token)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	// The other subject's session is untouched.
	_, err = store.Lookup(other.Token)
	require.NoError(t, err)

	require.NoError(t, store.InvalidateBySubject("unknown-subject"))
}

func TestInvalidateAll(t *testing.T) {
	store, _ := setupTestStore(t)

	first, err := store.Create(testSubject, nil)
	require.NoError(t, err)
	second, err := store.Create(testOtherSubject, nil)
	require.NoError(t, err)

	require.NoError(t, store.InvalidateAll())

	_, err = store.Lookup(first.Token)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
	_, err = store.Lookup(second.Token)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestSweepEvictsOnlyExpired(t *testing.T) {
	store, clock := setupTestStore(t)

	expired, err := store.Create(testSubject, nil)
	require.NoError(t, err)

	clock.Advance(testTTL + time.Minute)
	live, err := store.Create(testOtherSubject, nil)
	require.NoError(t, err)

	require.Equal(t, 1, store.Sweep(clock.Now()))

	_, err = store.Lookup(expired.Token)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
	_, err = store.Lookup(live.Token)
	require.NoError(t, err)
}

func TestLookupReturnsCopy(t *testing.T) {
	store, _ := setupTestStore(t)

	created, err := store.Create(testSubject, map[string]string{"username": "john"})
	require.NoError(t, err)

	found, err := store.Lookup(created.Token)
	require.NoError(t, err)
	found.Attributes["username"] = "mallory"

	again, err := store.Lookup(created.Token)
	require.NoError(t, err)
	require.Equal(t, "john", again.Attributes["username"])
}

func TestConcurrentAccess(t *testing.T) {
	store, _ := setupTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				session, err := store.Create(testSubject, nil)
				require.NoError(t, err)
				_, err = store.Lookup(session.Token)
				require.NoError(t, err)
				require.NoError(t, store.Invalidate(session.Token))
			}
		}()
	}
	wg.Wait()
}

func setupBoltStore(t *testing.T) *sessions.BoltStore {
	t.Helper()
	store, err := sessions.NewBoltStore(filepath.Join(t.TempDir(), "sessions.db"), testTTL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBoltCreateLookupInvalidate(t *testing.T) {
	store := setupBoltStore(t)

	created, err := store.Create(testSubject, map[string]string{"username": "john"})
	require.NoError(t, err)

	found, err := store.Lookup(created.Token)
	require.NoError(t, err)
	require.Equal(t, testSubject, found.Subject)
	require.Equal(t, "john", found.Attributes["username"])

	require.NoError(t, store.Invalidate(created.Token))
	require.NoError(t, store.Invalidate(created.Token))

	_, err = store.Lookup(created.Token)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestBoltInvalidateBySubject(t *testing.T) {
	store := setupBoltStore(t)

	first, err := store.Create(testSubject, nil)
	require.NoError(t, err)
	other, err := store.Create(testOtherSubject, nil)
	require.NoError(t, err)

	require.NoError(t, store.InvalidateBySubject(testSubject))

	_, err = store.Lookup(first.Token)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
	_, err = store.Lookup(other.Token)
	require.NoError(t, err)
}

func TestBoltSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := sessions.NewBoltStore(path, testTTL)
	require.NoError(t, err)
	created, err := store.Create(testSubject, nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := sessions.NewBoltStore(path, testTTL)
	require.NoError(t, err)
	defer reopened.Close()

	found, err := reopened.Lookup(created.Token)
	require.NoError(t, err)
	require.Equal(t, testSubject, found.Subject)
}
