package authrequests

import "time"

// State of a login attempt. FAILED is absorbing; every other transition is
// forward-only. Recorded for logs and tests; the transitions themselves are
// driven by the handshake flow.
type State string

const (
	StateInit        State = "INIT"
	StateRequested   State = "REQUESTED"
	StateCodeIssued  State = "CODE_ISSUED"
	StateExchanged   State = "EXCHANGED"
	StateEstablished State = "ESTABLISHED"
	StateFailed      State = "FAILED"
)

// Request is an in-flight authorization request, keyed by its state
// parameter. Consumed exactly once on callback; garbage-collected after a
// bounded timeout if the login is abandoned.
type Request struct {
	State     string
	Nonce     string
	Status    State
	CreatedAt time.Time
}

// Advance moves the attempt to the next state. FAILED absorbs: once an
// attempt has failed its status no longer changes.
func (r *Request) Advance(next State) {
	if r.Status == StateFailed {
		return
	}
	r.Status = next
}

type Repo interface {
	Upsert(state string, request *Request) error
	Get(state string) (*Request, error)
	Delete(state string) error

	// Consume atomically removes and returns the request for a state, so
	// two concurrent callbacks with the same state cannot both claim it.
	Consume(state string) (*Request, error)

	// DeleteExpired removes requests created before the cutoff and reports
	// how many, bounding growth from logins that never complete.
	DeleteExpired(cutoff time.Time) int
}
