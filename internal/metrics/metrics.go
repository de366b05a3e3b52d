package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fan-out and reconciliation outcomes are observability events only: they
// never reach an end user and never block the operation that produced them.
var (
	FanoutDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sso_logout_fanout_deliveries_total",
		Help: "Logout fan-out delivery attempts by peer and outcome.",
	}, []string{"peer", "outcome"})

	LogoutEventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sso_logout_events_received_total",
		Help: "Peer logout notifications received, by outcome.",
	}, []string{"outcome"})

	ReconcileLogouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sso_reconcile_logouts_total",
		Help: "Local logouts triggered by the reconciliation poll.",
	})

	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sso_sessions_created_total",
		Help: "Sessions established, via handshake or silent auth.",
	})
)

// Handler exposes the prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
