package crosstab_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso-service/crosstab"
)

const testMarkerTTL = 10 * time.Second

func TestPublishReachesAllSubscribers(t *testing.T) {
	hub := crosstab.NewHub(testMarkerTTL)

	first, cancelFirst := hub.Subscribe()
	defer cancelFirst()
	second, cancelSecond := hub.Subscribe()
	defer cancelSecond()
	require.Equal(t, 2, hub.SubscriberCount())

	hub.PublishLogout()

	require.Equal(t, crosstab.SignalLogout, (<-first).Type)
	require.Equal(t, crosstab.SignalLogout, (<-second).Type)
}

func TestMarkerReplayedToLateSubscriber(t *testing.T) {
	hub := crosstab.NewHub(testMarkerTTL)

	hub.PublishLogout()

	late, cancel := hub.Subscribe()
	defer cancel()

	select {
	case signal := <-late:
		require.Equal(t, crosstab.SignalLogout, signal.Type)
	default:
		t.Fatal("expected logout marker replay for late subscriber")
	}
}

func TestMarkerExpires(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hub := crosstab.NewHub(testMarkerTTL, crosstab.HubWithNowTime(func() time.Time { return now }))

	hub.PublishLogout()
	now = now.Add(testMarkerTTL + time.Second)

	late, cancel := hub.Subscribe()
	defer cancel()

	select {
	case <-late:
		t.Fatal("stale marker must not be replayed")
	default:
	}
}

func TestCancelledSubscriberIsSkipped(t *testing.T) {
	hub := crosstab.NewHub(testMarkerTTL)

	_, cancel := hub.Subscribe()
	cancel()
	cancel() // idempotent
	require.Equal(t, 0, hub.SubscriberCount())

	// Publishing after cancel must not panic on the closed channel.
	hub.PublishLogout()
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := crosstab.NewHub(testMarkerTTL)

	slow, cancelSlow := hub.Subscribe()
	defer cancelSlow()
	healthy, cancelHealthy := hub.Subscribe()
	defer cancelHealthy()

	// Overrun the slow subscriber's buffer without draining it.
	for i := 0; i < 20; i++ {
		hub.PublishLogout()
	}

	require.Equal(t, crosstab.SignalLogout, (<-healthy).Type)
	_ = slow
}
