package coordinator

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/shareflow/shareflow/internal/config"
	"github.com/shareflow/shareflow/internal/controlbus"
	"github.com/shareflow/shareflow/internal/device"
	"github.com/shareflow/shareflow/internal/discovery"
	"github.com/shareflow/shareflow/internal/wire"
)

func mustUDPAddr(t *testing.T, s string) *net.UDPAddr {
	t.Helper()
	addr, err := net.ResolveUDPAddr("udp", s)
	require.NoError(t, err)
	return addr
}


func testCoordinator(t *testing.T) (*Coordinator, *websocket.Conn, func()) {
	t.Helper()
	hub := controlbus.NewHub(zerolog.Nop())

	mux := http.NewServeMux()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Register(conn)
	})
	srv := httptest.NewServer(mux)

	wsURL := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	cfg := config.Config{
		Session: config.Session{
			ConnectTimeout:    time.Second,
			HandshakeTimeout:  time.Second,
			PendingInboundTTL: 50 * time.Millisecond,
			WatchdogInterval:  10 * time.Millisecond,
		},
	}
	self := device.Descriptor{ID: "device-self", Name: "Self", IP: "192.168.1.2", Kind: "DESKTOP"}
	c := New(cfg, zerolog.Nop(), self, hub)

	return c, conn, srv.Close
}

func readEnvelope(t *testing.T, conn *websocket.Conn) controlbus.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env controlbus.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestHandleAnnounceBroadcastsDeviceFound(t *testing.T) {
	c, conn, closeSrv := testCoordinator(t)
	defer closeSrv()

	c.handleAnnounce(discovery.Announce{
		Message: wire.Discovery{ID: "device-remote", Name: "Remote", Port: 8080},
		From:    mustUDPAddr(t, "192.168.1.9:8080"),
	})

	env := readEnvelope(t, conn)
	require.Equal(t, controlbus.TypeDeviceFound, env.Type)

	var info controlbus.DeviceInfo
	require.NoError(t, controlbus.DecodePayload(env.Payload, &info))
	require.Equal(t, "device-remote", info.ID)
	require.Equal(t, uint16(8080), c.ports["device-remote"])
}

func TestHandleAnnounceIgnoresSelf(t *testing.T) {
	c, conn, closeSrv := testCoordinator(t)
	defer closeSrv()

	c.handleAnnounce(discovery.Announce{
		Message: wire.Discovery{ID: c.self.ID, Name: c.self.Name, Port: 8080},
		From:    mustUDPAddr(t, "192.168.1.2:8080"),
	})

	// Nothing should have been broadcast; confirm by racing a fresh
	// broadcast past it.
	c.hub.Broadcast(controlbus.TypeLocalInfo, deviceToPayload(c.self))
	env := readEnvelope(t, conn)
	require.Equal(t, controlbus.TypeLocalInfo, env.Type)
}

func TestRequestConnectionUnknownDeviceFails(t *testing.T) {
	c, conn, closeSrv := testCoordinator(t)
	defer closeSrv()

	c.requestConnection("does-not-exist")

	env := readEnvelope(t, conn)
	require.Equal(t, controlbus.TypeConnectionFailed, env.Type)
	require.Equal(t, StateIdle, c.state)

	var payload controlbus.ConnectionFailedPayload
	require.NoError(t, controlbus.DecodePayload(env.Payload, &payload))
	require.Equal(t, "not-found", payload.Reason)
}

func TestSweepPendingInboundExpires(t *testing.T) {
	c, conn, closeSrv := testCoordinator(t)
	defer closeSrv()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	// net.Pipe writes block until read; drain the negative response.
	go io.Copy(io.Discard, clientConn)

	c.state = StateIncomingPending
	c.pendingIn = &pendingIn{
		conn:      serverConn,
		remote:    device.Descriptor{ID: "device-remote"},
		requested: time.Now().Add(-time.Hour),
	}

	c.sweepPendingInbound(time.Now())

	require.Equal(t, StateIdle, c.state)
	require.Nil(t, c.pendingIn)

	env := readEnvelope(t, conn)
	require.Equal(t, controlbus.TypeConnectionRequestCancelled, env.Type)
}

func TestHandleWireMessageIgnoredWhenNotConnected(t *testing.T) {
	c, _, closeSrv := testCoordinator(t)
	defer closeSrv()

	require.Equal(t, StateIdle, c.state)
	c.handleWireMessage(wire.MouseMove{DX: 1, DY: 1})
	require.Nil(t, c.dispatcher)
}

func TestCancelOutgoingResetsState(t *testing.T) {
	c, conn, closeSrv := testCoordinator(t)
	defer closeSrv()

	c.state = StateOutgoingPending
	c.pendingOutID = "device-remote"

	c.cancelOutgoing()

	require.Equal(t, StateIdle, c.state)
	require.Empty(t, c.pendingOutID)

	env := readEnvelope(t, conn)
	require.Equal(t, controlbus.TypeConnectionRequestCancelled, env.Type)
}
