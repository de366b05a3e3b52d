package logout_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso-service/internal/config"
	"github.com/jrsteele09/go-sso-service/logout"
	"github.com/jrsteele09/go-sso-service/peers"
)

const (
	testOrigin     = "service-a"
	testPeerSecret = "shared-secret-ab"
)

func testPolicy() config.ReconcilePolicy {
	return config.ReconcilePolicy{
		PollInterval:   5 * time.Second,
		RequestTimeout: 500 * time.Millisecond,
		RetryCount:     1,
	}
}

// notifySink records signed notifications arriving at a fake peer.
type notifySink struct {
	mu       sync.Mutex
	received []string
	status   int
}

func newNotifySink() *notifySink {
	return &notifySink{status: http.StatusOK}
}

func (s *notifySink) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != logout.NotifyPath {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.received = append(s.received, string(body))
		status := s.status
		s.mu.Unlock()
		w.WriteHeader(status)
	})
}

func (s *notifySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func (s *notifySink) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received[len(s.received)-1]
}

func TestDispatchReachesAllPeers(t *testing.T) {
	first := newNotifySink()
	firstServer := httptest.NewServer(first.handler())
	defer firstServer.Close()
	second := newNotifySink()
	secondServer := httptest.NewServer(second.handler())
	defer secondServer.Close()

	registry := peers.NewRegistry([]peers.Descriptor{
		{ID: "service-b", BaseURLs: []string{firstServer.URL}, Secret: testPeerSecret},
		{ID: "service-c", BaseURLs: []string{secondServer.URL}, Secret: "shared-secret-c"},
	})

	dispatcher := logout.NewDispatcher(testOrigin, registry, testPolicy())
	dispatcher.OnLocalLogout(context.Background(), "user-1")

	require.Equal(t, 1, first.count())
	require.Equal(t, 1, second.count())

	// Each peer can verify the notification under its own shared secret.
	event, err := registry.Verify(first.last(), time.Now())
	require.NoError(t, err)
	require.Equal(t, testOrigin, event.Origin)
	require.Equal(t, "user-1", event.Subject)
}

func TestDispatchSurvivesDeadPeer(t *testing.T) {
	reachable := newNotifySink()
	reachableServer := httptest.NewServer(reachable.handler())
	defer reachableServer.Close()

	registry := peers.NewRegistry([]peers.Descriptor{
		{ID: "service-b", BaseURLs: []string{reachableServer.URL}, Secret: testPeerSecret},
		{ID: "service-dead", BaseURLs: []string{"http://127.0.0.1:1"}, Secret: "dead-secret"},
	})

	dispatcher := logout.NewDispatcher(testOrigin, registry, testPolicy())

	start := time.Now()
	dispatcher.OnLocalLogout(context.Background(), "user-1")
	elapsed := time.Since(start)

	require.Equal(t, 1, reachable.count())
	// Concurrent delivery: the dead peer burns its own timeout budget, not
	// one timeout per peer stacked serially.
	require.Less(t, elapsed, 3*time.Second)
}

func TestDispatchTriesAlternateAddress(t *testing.T) {
	alternate := newNotifySink()
	alternateServer := httptest.NewServer(alternate.handler())
	defer alternateServer.Close()

	registry := peers.NewRegistry([]peers.Descriptor{
		{ID: "service-b", BaseURLs: []string{"http://127.0.0.1:1", alternateServer.URL}, Secret: testPeerSecret},
	})

	dispatcher := logout.NewDispatcher(testOrigin, registry, testPolicy())
	dispatcher.OnLocalLogout(context.Background(), "user-1")

	require.Equal(t, 1, alternate.count())
}

func TestDispatchRespectsRetryBudget(t *testing.T) {
	alternate := newNotifySink()
	alternateServer := httptest.NewServer(alternate.handler())
	defer alternateServer.Close()

	registry := peers.NewRegistry([]peers.Descriptor{
		{ID: "service-b", BaseURLs: []string{"http://127.0.0.1:1", alternateServer.URL}, Secret: testPeerSecret},
	})

	policy := testPolicy()
	policy.RetryCount = 0
	dispatcher := logout.NewDispatcher(testOrigin, registry, policy)
	dispatcher.OnLocalLogout(context.Background(), "user-1")

	// With no retries only the primary address is attempted.
	require.Equal(t, 0, alternate.count())
}

func TestDispatchRejectedStatusIsBestEffort(t *testing.T) {
	sink := newNotifySink()
	sink.status = http.StatusUnauthorized
	server := httptest.NewServer(sink.handler())
	defer server.Close()

	registry := peers.NewRegistry([]peers.Descriptor{
		{ID: "service-b", BaseURLs: []string{server.URL}, Secret: testPeerSecret},
	})

	// A rejection is logged and counted, never surfaced to the caller.
	dispatcher := logout.NewDispatcher(testOrigin, registry, testPolicy())
	dispatcher.OnLocalLogout(context.Background(), "user-1")
	require.Equal(t, 1, sink.count())
}
