package crosstab

import (
	"sync"
	"time"
)

const subscriberBuffer = 8

// Hub is the same-origin broadcast primitive behind the cross-tab signal
// bridge. Tabs of one service subscribe; a logout published by any of them
// reaches the siblings without a server round trip on their side. The last
// logout signal is retained as a marker for a bounded TTL so late-joining
// tabs still observe it, then cleared so a future login is not wedged.
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan Signal]struct{}
	marker      *Signal
	markerTTL   time.Duration
	nowTime     func() time.Time
}

// HubOption modifies a Hub instance.
type HubOption func(*Hub)

// HubWithNowTime sets the now time function (primarily for testing)
func HubWithNowTime(nowFunc func() time.Time) HubOption {
	return func(h *Hub) {
		h.nowTime = nowFunc
	}
}

func NewHub(markerTTL time.Duration, options ...HubOption) *Hub {
	h := &Hub{
		subscribers: make(map[chan Signal]struct{}),
		markerTTL:   markerTTL,
		nowTime:     time.Now,
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

// Subscribe registers a tab. If a fresh logout marker exists it is replayed
// immediately. The returned cancel func must be called when the tab goes
// away; the channel is closed by it.
func (h *Hub) Subscribe() (<-chan Signal, func()) {
	ch := make(chan Signal, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	if h.marker != nil && h.nowTime().Sub(h.marker.Timestamp) <= h.markerTTL {
		ch <- *h.marker
	} else {
		h.marker = nil
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish broadcasts a signal to every subscribed tab. A slow subscriber
// with a full buffer is skipped rather than blocking the rest; it will
// reconcile through its poll. Logout signals set the marker.
func (h *Hub) Publish(signal Signal) {
	if signal.Timestamp.IsZero() {
		signal.Timestamp = h.nowTime()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if signal.Type == SignalLogout {
		marker := signal
		h.marker = &marker
	}
	for ch := range h.subscribers {
		select {
		case ch <- signal:
		default:
		}
	}
}

// PublishLogout broadcasts the logout signal stamped now.
func (h *Hub) PublishLogout() {
	h.Publish(Signal{Type: SignalLogout, Timestamp: h.nowTime()})
}

// SubscriberCount reports how many tabs are attached.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
