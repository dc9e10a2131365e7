package controlbus

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// clientSendBuffer bounds how far a slow UI subscriber can fall behind
// before the hub starts dropping its oldest queued messages rather than
// blocking the broadcaster (spec §6: the control bus is local and
// best-effort, not a reliability boundary for the session itself).
const clientSendBuffer = 64

// InboundMessage pairs a decoded envelope with the client it arrived
// on, so the coordinator can reply to, or act only on behalf of, the
// client that sent it.
type InboundMessage struct {
	Client *Client
	Type   string
	Raw    []byte
}

// Client is one connected UI's WebSocket session.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{hub: hub, conn: conn, send: make(chan []byte, clientSendBuffer)}
}

// enqueue pushes a pre-encoded frame to the client's write goroutine,
// dropping the oldest queued frame if the client isn't keeping up.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- frame:
	default:
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.conn.Close()
}

// Hub fans coordinator events out to every connected UI and funnels UI
// commands back to a single inbound channel the coordinator drains
// (spec §6). Shaped after helixml-helix's ws_input.go connection loop,
// generalized from one connection to a registered set.
type Hub struct {
	logger zerolog.Logger

	mu      sync.Mutex
	clients map[*Client]struct{}

	inbound chan InboundMessage

	// last known state, re-announced to late joiners (spec §4.6).
	lastLocalInfo      []byte
	pendingInboundFrom string
	pendingInboundInfo []byte
}

// NewHub creates an empty Hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:  logger.With().Str("component", "controlbus.hub").Logger(),
		clients: make(map[*Client]struct{}),
		inbound: make(chan InboundMessage, 256),
	}
}

// Inbound is drained by the coordinator to receive UI commands.
func (h *Hub) Inbound() <-chan InboundMessage { return h.inbound }

// Register adds a client and replays any state a late joiner should
// see immediately: the local device descriptor and a pending inbound
// connection request, if one is outstanding (spec §4.6).
func (h *Hub) Register(conn *websocket.Conn) *Client {
	c := newClient(h, conn)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	localInfo := h.lastLocalInfo
	pendingFrom := h.pendingInboundFrom
	pendingInfo := h.pendingInboundInfo
	h.mu.Unlock()

	if localInfo != nil {
		c.enqueue(localInfo)
	}
	if pendingFrom != "" {
		c.enqueue(pendingInfo)
	}

	go c.writePump()
	go c.readPump(h)
	return c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// Broadcast sends an envelope to every connected client.
func (h *Hub) Broadcast(msgType string, payload interface{}) {
	frame := encode(msgType, payload)
	h.rememberForLateJoiners(msgType, frame)

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.enqueue(frame)
	}
}

// SendTo pushes an envelope to a single client, used for replies that
// only make sense to the client that issued the request.
func (h *Hub) SendTo(c *Client, msgType string, payload interface{}) {
	c.enqueue(encode(msgType, payload))
}

// rememberForLateJoiners caches state a freshly (re)connected UI needs
// replayed to it immediately (spec §4.6). Pending-inbound state is
// tracked separately via MarkPendingInbound/ClearPendingInbound since
// the coordinator, not the broadcast payload itself, knows the
// request's device ID.
func (h *Hub) rememberForLateJoiners(msgType string, frame []byte) {
	if msgType != TypeLocalInfo {
		return
	}
	h.mu.Lock()
	h.lastLocalInfo = frame
	h.mu.Unlock()
}

// MarkPendingInbound records which device has an outstanding inbound
// connection request, so a UI that (re)connects mid-request still sees
// it (spec §4.6).
func (h *Hub) MarkPendingInbound(deviceID string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pendingInboundFrom = deviceID
	h.pendingInboundInfo = encode(TypeConnectionRequest, payload)
}

// ClearPendingInbound forgets the outstanding inbound request, once it
// is accepted, rejected, cancelled, or times out.
func (h *Hub) ClearPendingInbound() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pendingInboundFrom = ""
	h.pendingInboundInfo = nil
}

func (c *Client) writePump() {
	for frame := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *Client) readPump(h *Hub) {
	defer h.unregister(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug().Err(err).Msg("control bus read error")
			}
			return
		}

		env, ok := decodeEnvelope(data)
		if !ok {
			h.logger.Warn().Msg("dropping malformed control bus message")
			continue
		}

		select {
		case h.inbound <- InboundMessage{Client: c, Type: env.Type, Raw: env.Payload}:
		default:
			h.logger.Warn().Str("type", env.Type).Msg("inbound control bus queue full, dropping message")
		}
	}
}
