package logout

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jrsteele09/go-sso-service/internal/config"
	"github.com/jrsteele09/go-sso-service/internal/errors"
	"github.com/jrsteele09/go-sso-service/internal/metrics"
	"github.com/jrsteele09/go-sso-service/peers"
)

// NotifyPath is where peers receive signed logout events.
const NotifyPath = "/internal/logout-notify"

// Dispatcher pushes best-effort logout notifications to every registered
// peer. Delivery is concurrent: a slow or unreachable peer delays neither
// the other peers nor the caller, whose own logout has already completed
// before Dispatch runs.
type Dispatcher struct {
	origin   string
	registry *peers.Registry
	policy   config.ReconcilePolicy
	client   *http.Client
	nowTime  func() time.Time
}

// DispatcherOption modifies a Dispatcher instance.
type DispatcherOption func(*Dispatcher)

// WithHTTPClient overrides the transport (primarily for testing).
func WithHTTPClient(client *http.Client) DispatcherOption {
	return func(d *Dispatcher) {
		d.client = client
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.nowTime = nowFunc
	}
}

func NewDispatcher(origin string, registry *peers.Registry, policy config.ReconcilePolicy, options ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		origin:   origin,
		registry: registry,
		policy:   policy,
		client:   &http.Client{},
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// OnLocalLogout builds and dispatches a logout event for the subject.
// Intended to run on a detached goroutine after the local invalidation has
// already succeeded and been acknowledged to the caller.
func (d *Dispatcher) OnLocalLogout(ctx context.Context, subject string) {
	d.Dispatch(ctx, peers.NewEvent(d.origin, subject, d.nowTime()))
}

// Dispatch delivers the event to all peers in parallel. Total wall time is
// bounded by the per-attempt timeout times the attempt count, not by the
// number of peers. Failures are logged and counted, nothing more - peers
// reconcile missed events through their own polling.
func (d *Dispatcher) Dispatch(ctx context.Context, event peers.Event) {
	g, gctx := errgroup.WithContext(ctx)
	for _, peer := range d.registry.All() {
		g.Go(func() error {
			if err := d.notifyPeer(gctx, peer, event); err != nil {
				metrics.FanoutDeliveries.WithLabelValues(peer.ID, "failure").Inc()
				log.Warn().Err(err).
					Str("peer", peer.ID).
					Str("event", event.ID).
					Msg("logout fan-out delivery failed")
				return nil // best effort: one dead peer must not cancel the rest
			}
			metrics.FanoutDeliveries.WithLabelValues(peer.ID, "success").Inc()
			return nil
		})
	}
	_ = g.Wait()
}

// notifyPeer tries the peer's primary address, then at most RetryCount
// alternates. Each attempt carries its own timeout.
func (d *Dispatcher) notifyPeer(ctx context.Context, peer peers.Descriptor, event peers.Event) error {
	signed, err := peers.Sign(event, peer.Secret)
	if err != nil {
		return errors.Wrapf(err, "signing event for %s", peer.ID)
	}

	attempts := min(len(peer.BaseURLs), 1+d.policy.RetryCount)
	if attempts == 0 {
		return errors.Wrapf(errors.ErrPeerUnreachable, "peer %s has no addresses", peer.ID)
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := d.post(ctx, peer.BaseURLs[i], signed); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return errors.Wrapf(errors.ErrPeerUnreachable, "peer %s: %v", peer.ID, lastErr)
}

func (d *Dispatcher) post(ctx context.Context, baseURL, signed string) error {
	attemptCtx, cancel := context.WithTimeout(ctx, d.policy.RequestTimeout)
	defer cancel()

	url := strings.TrimRight(baseURL, "/") + NotifyPath
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, strings.NewReader(signed))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/jwt")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(errors.ErrPeerUnreachable, "status %d from %s", resp.StatusCode, url)
	}
	return nil
}
