package crosstab

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-sso-service/internal/config"
	"github.com/jrsteele09/go-sso-service/internal/errors"
	"github.com/jrsteele09/go-sso-service/internal/metrics"
)

// CheckFunc reports whether the user is still logged in. It is expected to
// consult both the local session store and the IdP's status endpoint.
type CheckFunc func(ctx context.Context) (bool, error)

// Poller is the reconciliation half of the cross-tab bridge: while a tab
// believes the user is logged in, it periodically re-checks and, the moment
// that stops being true, triggers the same local-logout path an explicit
// user action would. It closes the gap left by any dropped fan-out or
// cross-tab signal. Cooperative and cancellable: Run returns as soon as the
// context is done or the user is found logged out.
type Poller struct {
	policy   config.ReconcilePolicy
	check    CheckFunc
	onLogout func()
}

func NewPoller(policy config.ReconcilePolicy, check CheckFunc, onLogout func()) *Poller {
	return &Poller{policy: policy, check: check, onLogout: onLogout}
}

// Run polls until the context is cancelled or the session is gone. A check
// that fails with a transport error keeps the session: an unreachable IdP
// must not log every tab out, only an authoritative "not logged in" does.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.policy.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.reconcileOnce(ctx) {
				return
			}
		}
	}
}

// reconcileOnce runs one check. Returns true when polling should stop.
func (p *Poller) reconcileOnce(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, p.policy.RequestTimeout)
	defer cancel()

	loggedIn, err := p.check(checkCtx)
	if err != nil && !errors.Is(err, errors.ErrSessionNotFound) {
		log.Debug().Err(err).Msg("reconciliation check failed, keeping session")
		return false
	}
	if loggedIn {
		return false
	}

	metrics.ReconcileLogouts.Inc()
	p.onLogout()
	return true
}
