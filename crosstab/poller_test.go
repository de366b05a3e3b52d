package crosstab_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso-service/crosstab"
	"github.com/jrsteele09/go-sso-service/internal/config"
	"github.com/jrsteele09/go-sso-service/internal/errors"
)

func pollerPolicy() config.ReconcilePolicy {
	return config.ReconcilePolicy{
		PollInterval:   10 * time.Millisecond,
		RequestTimeout: 50 * time.Millisecond,
		RetryCount:     1,
	}
}

func TestPollerTriggersLogoutOnAuthoritativeAnswer(t *testing.T) {
	var loggedIn atomic.Bool
	loggedIn.Store(true)

	check := func(ctx context.Context) (bool, error) {
		return loggedIn.Load(), nil
	}

	loggedOut := make(chan struct{})
	poller := crosstab.NewPoller(pollerPolicy(), check, func() { close(loggedOut) })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	// Stay logged in for a few polls, then revoke upstream.
	time.Sleep(50 * time.Millisecond)
	loggedIn.Store(false)

	select {
	case <-loggedOut:
	case <-time.After(time.Second):
		t.Fatal("expected the poller to trigger local logout")
	}
	<-done
}

func TestPollerKeepsSessionOnTransportError(t *testing.T) {
	var checks atomic.Int32
	check := func(ctx context.Context) (bool, error) {
		checks.Add(1)
		return false, errors.ErrUpstreamUnavailable
	}

	poller := crosstab.NewPoller(pollerPolicy(), check, func() {
		t.Error("an unreachable upstream must not log the user out")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	poller.Run(ctx)

	require.Greater(t, checks.Load(), int32(1))
}

func TestPollerTreatsMissingSessionAsLogout(t *testing.T) {
	check := func(ctx context.Context) (bool, error) {
		return false, errors.ErrSessionNotFound
	}

	loggedOut := make(chan struct{})
	poller := crosstab.NewPoller(pollerPolicy(), check, func() { close(loggedOut) })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go poller.Run(ctx)

	select {
	case <-loggedOut:
	case <-time.After(time.Second):
		t.Fatal("a missing local session is an authoritative logout")
	}
}

func TestPollerStopsOnContextCancel(t *testing.T) {
	check := func(ctx context.Context) (bool, error) { return true, nil }
	poller := crosstab.NewPoller(pollerPolicy(), check, func() {})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return once the context is cancelled")
	}
}
