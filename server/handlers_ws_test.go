package server_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso-service/crosstab"
	"github.com/jrsteele09/go-sso-service/peers"
	"github.com/jrsteele09/go-sso-service/server"
)

// dialSessionSocket attaches a tab to the node's session socket. The dial
// goes through the fixture's client so an established session cookie rides
// along with the upgrade request.
func (f *ssoFixture) dialSessionSocket(t *testing.T, baseURL string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + server.RouteSessionSocket
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPClient: f.client})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func readAuthState(t *testing.T, conn *websocket.Conn) crosstab.AuthState {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var state crosstab.AuthState
	require.NoError(t, wsjson.Read(ctx, conn, &state))
	return state
}

func readSignal(t *testing.T, conn *websocket.Conn) crosstab.Signal {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var signal crosstab.Signal
	require.NoError(t, wsjson.Read(ctx, conn, &signal))
	return signal
}

func TestSessionSocketReceivesPeerLogout(t *testing.T) {
	f := setupSSOFixture(t)

	conn := f.dialSessionSocket(t, f.rpURL)
	require.False(t, readAuthState(t, conn).LoggedIn)

	// A peer logout lands on the bridge and reaches the attached tab.
	signed, err := peers.Sign(peers.NewEvent("service-a", testSubject, time.Now()), peerLinkSecret)
	require.NoError(t, err)
	resp, err := f.client.Post(f.rpURL+server.RouteLogoutNotify, "application/jwt", strings.NewReader(signed))
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, crosstab.SignalLogout, readSignal(t, conn).Type)
}

func TestSessionSocketReplaysFreshMarker(t *testing.T) {
	f := setupSSOFixture(t)

	// Logout happens before any tab is attached.
	signed, err := peers.Sign(peers.NewEvent("service-a", testSubject, time.Now()), peerLinkSecret)
	require.NoError(t, err)
	resp, err := f.client.Post(f.rpURL+server.RouteLogoutNotify, "application/jwt", strings.NewReader(signed))
	require.NoError(t, err)
	resp.Body.Close()

	// A late-joining tab still observes the logout.
	conn := f.dialSessionSocket(t, f.rpURL)
	require.False(t, readAuthState(t, conn).LoggedIn)
	require.Equal(t, crosstab.SignalLogout, readSignal(t, conn).Type)
}

func TestSessionSocketPollerReconcilesDroppedLogout(t *testing.T) {
	f := setupSSOFixture(t)
	f.loginAtIdP(t)

	// Establish the RP session silently, then attach a tab carrying it.
	var silent statusPayload
	f.getJSON(t, f.rpURL+server.RouteAuthSilent, &silent)
	require.True(t, silent.LoggedIn)

	conn := f.dialSessionSocket(t, f.rpURL)
	require.True(t, readAuthState(t, conn).LoggedIn)

	// The IdP session dies without a logout, so no event is ever
	// dispatched. Only the tab's reconciliation poll can notice.
	require.NoError(t, f.idpStore.InvalidateBySubject(testSubject))

	require.Equal(t, crosstab.SignalLogout, readSignal(t, conn).Type)
	require.Eventually(t, func() bool {
		return f.loggedOutAt(f.rpURL)
	}, 5*time.Second, 50*time.Millisecond, "poll should log the RP out")
}
