package coordinator

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/shareflow/shareflow/internal/capture"
	"github.com/shareflow/shareflow/internal/config"
	"github.com/shareflow/shareflow/internal/controlbus"
	"github.com/shareflow/shareflow/internal/device"
	"github.com/shareflow/shareflow/internal/discovery"
	"github.com/shareflow/shareflow/internal/replay"
	"github.com/shareflow/shareflow/internal/session"
	"github.com/shareflow/shareflow/internal/wire"
)

// pendingIn is the outstanding inbound connection request, if any
// (spec §4.7, invariant: at most one at a time).
type pendingIn struct {
	conn      net.Conn
	remote    device.Descriptor
	requested time.Time
}

// Coordinator owns ShareFlow's entire connection state machine. All
// state lives on the goroutine running Run; every other component
// reaches it only through a channel send (see state.go's package doc).
type Coordinator struct {
	cfg    config.Config
	logger zerolog.Logger

	self device.Descriptor

	peers    *discovery.PeerTable
	sender   *discovery.Sender
	listener *discovery.Listener

	sessionListener *session.Listener
	hub             *controlbus.Hub

	hook       *capture.Hook
	dispatcher *replay.Dispatcher
	backend    replay.Backend

	state State
	role  Role
	sess  *session.Session

	pendingOutID     string
	pendingOutCancel context.CancelFunc
	pendingIn        *pendingIn

	// ports tracks each discovered peer's advertised session port,
	// carried by wire.Discovery but not part of device.Descriptor.
	// Owned solely by the Run goroutine, like every other field here.
	ports map[string]uint16

	inboundConns   chan inboundConn
	outgoingResult chan outgoingResult
	sessionMsgs    chan wire.Message
	sessionDone    chan sessionClosed
}

// New builds a Coordinator. Call Run to start it; nothing happens
// before that.
func New(cfg config.Config, logger zerolog.Logger, self device.Descriptor, hub *controlbus.Hub) *Coordinator {
	return &Coordinator{
		cfg:            cfg,
		logger:         logger.With().Str("component", "coordinator").Logger(),
		self:           self,
		peers:          discovery.NewPeerTable(),
		hub:            hub,
		state:          StateIdle,
		role:           RoleNone,
		ports:          make(map[string]uint16),
		inboundConns:   make(chan inboundConn, 1),
		outgoingResult: make(chan outgoingResult, 1),
		sessionMsgs:    make(chan wire.Message, 256),
		sessionDone:    make(chan sessionClosed, 2),
	}
}

// Run wires up discovery, the session listener, and the control bus,
// then blocks in the event loop until ctx is cancelled (spec §4.7).
func (c *Coordinator) Run(ctx context.Context) error {
	sender, err := discovery.NewSender(c.logger)
	if err != nil {
		return err
	}
	c.sender = sender
	defer sender.Close()

	listener, err := discovery.NewListenerOn(c.logger, c.cfg.Discovery.Port)
	if err != nil {
		return err
	}
	c.listener = listener
	defer listener.Close()

	sessionListener, err := session.ListenOn(c.cfg.Session.Port)
	if err != nil {
		return err
	}
	c.sessionListener = sessionListener
	defer sessionListener.Close()

	announceCh := make(chan discovery.Announce, 64)
	go func() {
		_ = listener.Run(ctx, func(a discovery.Announce) {
			select {
			case announceCh <- a:
			default:
			}
		})
	}()
	go func() {
		_ = sender.Run(ctx, c.self, c.cfg.Session.Port)
	}()
	go c.acceptLoop(ctx)

	watchdog := time.NewTicker(c.cfg.Session.WatchdogInterval)
	defer watchdog.Stop()

	c.hub.Broadcast(controlbus.TypeLocalInfo, deviceToPayload(c.self))

	for {
		select {
		case <-ctx.Done():
			c.teardownSession()
			return nil

		case a := <-announceCh:
			c.handleAnnounce(a)

		case ic := <-c.inboundConns:
			c.handleInboundConn(ic)

		case res := <-c.outgoingResult:
			c.handleOutgoingResult(res)

		case msg := <-c.inboundFromHub():
			c.handleHubMessage(msg)

		case ev := <-c.captureEvents():
			c.handleCaptureEvent(ev)

		case <-c.captureExit():
			c.handleEscapeHatch()

		case msg := <-c.sessionMsgs:
			c.handleWireMessage(msg)

		case sc := <-c.sessionDone:
			c.handleSessionClosed(sc)

		case now := <-watchdog.C:
			c.sweepPendingInbound(now)
			c.peers.Prune(now)
		}
	}
}

// inboundFromHub guards against a nil hub in tests that only exercise
// discovery or session logic.
func (c *Coordinator) inboundFromHub() <-chan controlbus.InboundMessage {
	if c.hub == nil {
		return nil
	}
	return c.hub.Inbound()
}

func (c *Coordinator) captureEvents() <-chan capture.Event {
	if c.hook == nil {
		return nil
	}
	return c.hook.Events()
}

func (c *Coordinator) captureExit() <-chan struct{} {
	if c.hook == nil {
		return nil
	}
	return c.hook.ExitRequested()
}

// acceptLoop accepts raw TCP connections and completes the
// ConnectRequest half of the handshake before handing them to the
// event loop, so a slow or malicious peer can only ever block its own
// goroutine (spec §4.2).
func (c *Coordinator) acceptLoop(ctx context.Context) {
	for {
		conn, err := c.sessionListener.Accept()
		if err != nil {
			return
		}
		go func() {
			if err := session.AwaitConnectRequest(conn, c.cfg.Session.HandshakeTimeout); err != nil {
				conn.Close()
				return
			}
			remote, ok := c.peers.FindByIP(hostOf(conn.RemoteAddr()))
			if !ok {
				session.SendConnectResponse(conn, false)
				conn.Close()
				return
			}
			select {
			case c.inboundConns <- inboundConn{conn: conn, remote: remote}:
			case <-ctx.Done():
				conn.Close()
			}
		}()
	}
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

func deviceToPayload(d device.Descriptor) controlbus.DeviceInfo {
	return controlbus.DeviceInfo{ID: d.ID, Name: d.Name, IP: d.IP, Kind: d.Kind}
}
