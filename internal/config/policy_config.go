package config

import "time"

// ReconcilePolicy is the single knob set governing every periodic re-check
// and best-effort delivery in the system: the cross-tab reconciliation poll
// and the logout fan-out both take it, so the intervals live in one place.
type ReconcilePolicy struct {
	PollInterval   time.Duration
	RequestTimeout time.Duration
	RetryCount     int
}

type PolicyConfig interface {
	GetReconcilePolicy() ReconcilePolicy
	GetMarkerTTL() time.Duration
}

type Policy struct {
	vars EnvVars
}

var _ PolicyConfig = Policy{}

func (p Policy) GetReconcilePolicy() ReconcilePolicy {
	return ReconcilePolicy{
		PollInterval:   p.vars.PollInterval,
		RequestTimeout: p.vars.RequestTimeout,
		RetryCount:     p.vars.RetryCount,
	}
}

func (p Policy) GetMarkerTTL() time.Duration {
	return p.vars.MarkerTTL
}
