package controlbus

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Hub, *httptest.Server, func()) {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Register(conn)
	})
	srv := httptest.NewServer(mux)
	return hub, srv, srv.Close
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func TestHubBroadcastReachesClient(t *testing.T) {
	hub, srv, closeSrv := newTestServer(t)
	defer closeSrv()

	conn := dial(t, srv)
	defer conn.Close()

	hub.Broadcast(TypeDeviceFound, DeviceInfo{ID: "device-a", Name: "A", IP: "192.168.1.5", Kind: "DESKTOP"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	env, ok := decodeEnvelope(data)
	require.True(t, ok)
	require.Equal(t, TypeDeviceFound, env.Type)

	var info DeviceInfo
	require.NoError(t, DecodePayload(env.Payload, &info))
	require.Equal(t, "device-a", info.ID)
}

func TestHubReplaysLocalInfoToLateJoiner(t *testing.T) {
	hub, srv, closeSrv := newTestServer(t)
	defer closeSrv()

	hub.Broadcast(TypeLocalInfo, DeviceInfo{ID: "device-self", Name: "Self", IP: "192.168.1.9", Kind: "DESKTOP"})

	conn := dial(t, srv)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	env, ok := decodeEnvelope(data)
	require.True(t, ok)
	require.Equal(t, TypeLocalInfo, env.Type)
}

func TestHubReplaysPendingInboundToLateJoiner(t *testing.T) {
	hub, srv, closeSrv := newTestServer(t)
	defer closeSrv()

	hub.MarkPendingInbound("device-remote", DeviceInfo{ID: "device-remote", Name: "Remote", IP: "192.168.1.7", Kind: "LAPTOP"})

	conn := dial(t, srv)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	env, ok := decodeEnvelope(data)
	require.True(t, ok)
	require.Equal(t, TypeConnectionRequest, env.Type)
}

func TestHubInboundDispatch(t *testing.T) {
	hub, srv, closeSrv := newTestServer(t)
	defer closeSrv()

	conn := dial(t, srv)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Envelope{Type: TypeStartDiscovery}))

	select {
	case msg := <-hub.Inbound():
		require.Equal(t, TypeStartDiscovery, msg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound message")
	}
}

func TestDecodeEnvelopeRejectsMissingType(t *testing.T) {
	_, ok := decodeEnvelope([]byte(`{"payload":{}}`))
	require.False(t, ok)
}
