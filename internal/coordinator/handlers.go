package coordinator

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/shareflow/shareflow/internal/capture"
	"github.com/shareflow/shareflow/internal/controlbus"
	"github.com/shareflow/shareflow/internal/device"
	"github.com/shareflow/shareflow/internal/discovery"
	"github.com/shareflow/shareflow/internal/replay"
	"github.com/shareflow/shareflow/internal/session"
	"github.com/shareflow/shareflow/internal/wire"
)

// reasonRejected, reasonTimeout, reasonNotFound, and reasonHandshakeError
// are the ConnectionFailed.Reason tokens the spec's §4.7/§7 taxonomy and
// §8 end-to-end scenarios assert on verbatim.
const (
	reasonRejected          = "rejected"
	reasonTimeout           = "timeout"
	reasonNotFound          = "not-found"
	reasonHandshakeError    = "handshake-error"
	reasonAlreadyBusy       = "already-busy"
	reasonReplayUnavailable = "replay-backend-unavailable"
)

// classifyOutgoingFailure maps a failed dial/handshake attempt to one
// of the spec's enumerated ConnectionFailed reasons (spec §4.7, §7,
// §8 scenarios #3/#5).
func classifyOutgoingFailure(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return reasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return reasonTimeout
	}
	return reasonHandshakeError
}

func (c *Coordinator) handleAnnounce(a discovery.Announce) {
	if a.Message.ID == c.self.ID {
		return
	}
	desc := device.Descriptor{ID: a.Message.ID, Name: a.Message.Name, IP: hostOf(a.From), Kind: device.DefaultKind}
	c.peers.Upsert(desc, time.Now())
	c.ports[desc.ID] = a.Message.Port
	c.hub.Broadcast(controlbus.TypeDeviceFound, deviceToPayload(desc))
}

func (c *Coordinator) handleInboundConn(ic inboundConn) {
	if c.state != StateIdle {
		session.SendConnectResponse(ic.conn, false)
		ic.conn.Close()
		return
	}
	c.state = StateIncomingPending
	c.pendingIn = &pendingIn{conn: ic.conn, remote: ic.remote, requested: time.Now()}
	payload := deviceToPayload(ic.remote)
	c.hub.MarkPendingInbound(ic.remote.ID, payload)
	c.hub.Broadcast(controlbus.TypeConnectionRequest, payload)
}

func (c *Coordinator) sweepPendingInbound(now time.Time) {
	if c.pendingIn == nil {
		return
	}
	if now.Sub(c.pendingIn.requested) < c.cfg.Session.PendingInboundTTL {
		return
	}
	session.SendConnectResponse(c.pendingIn.conn, false)
	c.pendingIn.conn.Close()
	remoteID := c.pendingIn.remote.ID
	c.pendingIn = nil
	c.state = StateIdle
	c.hub.ClearPendingInbound()
	c.hub.Broadcast(controlbus.TypeConnectionRequestCancelled, controlbus.DeviceIDPayload{DeviceID: remoteID})
}

func (c *Coordinator) handleOutgoingResult(res outgoingResult) {
	if c.state != StateOutgoingPending || res.targetID != c.pendingOutID {
		if res.conn != nil {
			res.conn.Close()
		}
		return
	}
	c.pendingOutID = ""
	c.pendingOutCancel = nil

	if res.err != nil || !res.accepted {
		c.state = StateIdle
		reason := reasonRejected
		if res.err != nil {
			reason = classifyOutgoingFailure(res.err)
		}
		if res.conn != nil {
			res.conn.Close()
		}
		c.hub.Broadcast(controlbus.TypeConnectionFailed, controlbus.ConnectionFailedPayload{DeviceID: res.targetID, Reason: reason})
		return
	}

	c.becomeConnected(res.conn, res.targetID, RoleController)
}

func (c *Coordinator) handleSessionClosed(sessionClosed) {
	if c.sess == nil {
		return
	}
	c.teardownSession()
	c.hub.Broadcast(controlbus.TypeDisconnected, struct{}{})
}

func (c *Coordinator) handleWireMessage(msg wire.Message) {
	if c.state != StateConnected {
		return
	}
	switch m := msg.(type) {
	case wire.MouseMove:
		if c.dispatcher != nil {
			c.dispatcher.Move(m.DX, m.DY)
		}
	case wire.MouseClick:
		if c.dispatcher != nil {
			c.dispatcher.Click(m.Button, m.Down)
		}
		c.hub.Broadcast(controlbus.TypeRemoteInput, controlbus.InputEventPayload{
			Type: boolEventName("mousedown", "mouseup", m.Down), Button: m.Button, Timestamp: time.Now().UnixMilli(),
		})
	case wire.KeyPress:
		if c.dispatcher != nil {
			c.dispatcher.Key(m.Code, m.Down)
		}
		c.hub.Broadcast(controlbus.TypeRemoteInput, controlbus.InputEventPayload{
			Type: boolEventName("keydown", "keyup", m.Down), KeyCode: m.Code, Timestamp: time.Now().UnixMilli(),
		})
	case wire.Disconnect:
		c.teardownSession()
		c.hub.Broadcast(controlbus.TypeDisconnected, struct{}{})
	}
}

func boolEventName(ifTrue, ifFalse string, v bool) string {
	if v {
		return ifTrue
	}
	return ifFalse
}

func (c *Coordinator) handleCaptureEvent(ev capture.Event) {
	forward := c.role == RoleController && c.state == StateConnected && c.sess != nil

	switch ev.Type {
	case capture.EventMouseMove:
		if forward && (ev.DX != 0 || ev.DY != 0) {
			c.sess.Enqueue(wire.MouseMove{DX: ev.DX, DY: ev.DY})
		}
		// Motion is never echoed to the UI: at capture-device resolution
		// it would flood the control bus for no benefit (spec §4.4, §6).
	case capture.EventMouseDown, capture.EventMouseUp:
		if forward {
			c.sess.Enqueue(wire.MouseClick{Button: ev.Button, Down: ev.Type == capture.EventMouseDown})
		}
		c.hub.Broadcast(controlbus.TypeLocalInput, eventToPayload(ev))
	case capture.EventKeyDown, capture.EventKeyUp:
		if forward && ev.KeyCode != 0 {
			c.sess.Enqueue(wire.KeyPress{Code: ev.KeyCode, Down: ev.Type == capture.EventKeyDown})
		}
		c.hub.Broadcast(controlbus.TypeLocalInput, eventToPayload(ev))
	case capture.EventWheel, capture.EventLongPress:
		// Neither has a wire representation (spec §4.5's message set is
		// move/click/key only); still surfaced to the UI for visibility.
		c.hub.Broadcast(controlbus.TypeLocalInput, eventToPayload(ev))
	}
}

func eventToPayload(ev capture.Event) controlbus.InputEventPayload {
	return controlbus.InputEventPayload{
		Type: string(ev.Type), DX: ev.DX, DY: ev.DY, Button: ev.Button,
		KeyCode: ev.KeyCode, KeyName: ev.KeyName, Timestamp: ev.Timestamp,
	}
}

func (c *Coordinator) handleEscapeHatch() {
	if c.state == StateConnected && c.role == RoleController {
		c.disconnect()
	}
}

// handleHubMessage dispatches one UI command (spec §6).
func (c *Coordinator) handleHubMessage(msg controlbus.InboundMessage) {
	switch msg.Type {
	case controlbus.TypeGetLocalInfo:
		c.hub.SendTo(msg.Client, controlbus.TypeLocalInfo, deviceToPayload(c.self))

	case controlbus.TypeStartDiscovery:
		// Discovery broadcast/listen runs continuously once Run starts
		// (spec §4.1); nothing further to do per UI request.

	case controlbus.TypeStartCapture:
		c.startCapture()

	case controlbus.TypeStopCapture:
		c.stopCapture()

	case controlbus.TypeRequestConnection:
		var p controlbus.TargetDevicePayload
		if controlbus.DecodePayload(msg.Raw, &p) == nil {
			c.requestConnection(p.TargetDeviceID)
		}

	case controlbus.TypeCancelConnection:
		c.cancelOutgoing()

	case controlbus.TypeAcceptConnection:
		var p controlbus.TargetDevicePayload
		if controlbus.DecodePayload(msg.Raw, &p) == nil {
			c.acceptIncoming(p.TargetDeviceID)
		}

	case controlbus.TypeRejectConnection:
		var p controlbus.TargetDevicePayload
		if controlbus.DecodePayload(msg.Raw, &p) == nil {
			c.rejectIncoming(p.TargetDeviceID)
		}

	case controlbus.TypeDisconnect:
		c.disconnect()

	case controlbus.TypeSendInput:
		var p controlbus.InputEventPayload
		if controlbus.DecodePayload(msg.Raw, &p) == nil {
			c.sendManualInput(p)
		}
	}
}

func (c *Coordinator) requestConnection(targetID string) {
	if c.state != StateIdle {
		c.hub.Broadcast(controlbus.TypeConnectionFailed, controlbus.ConnectionFailedPayload{DeviceID: targetID, Reason: reasonAlreadyBusy})
		return
	}
	remote, ok := c.peers.Get(targetID)
	port, okPort := c.ports[targetID]
	if !ok || !okPort {
		c.hub.Broadcast(controlbus.TypeConnectionFailed, controlbus.ConnectionFailedPayload{DeviceID: targetID, Reason: reasonNotFound})
		return
	}

	c.state = StateOutgoingPending
	c.pendingOutID = targetID

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Session.HandshakeTimeout)
	c.pendingOutCancel = cancel
	addr := net.JoinHostPort(remote.IP, strconv.Itoa(int(port)))
	go c.dialAndHandshake(ctx, targetID, addr)
}

func (c *Coordinator) dialAndHandshake(ctx context.Context, targetID, addr string) {
	conn, err := session.Dial(ctx, addr, c.cfg.Session.ConnectTimeout)
	if err != nil {
		c.outgoingResult <- outgoingResult{targetID: targetID, err: err}
		return
	}
	if err := session.SendConnectRequest(conn); err != nil {
		conn.Close()
		c.outgoingResult <- outgoingResult{targetID: targetID, err: err}
		return
	}
	ok, err := session.AwaitConnectResponse(ctx, conn, c.cfg.Session.HandshakeTimeout)
	c.outgoingResult <- outgoingResult{targetID: targetID, conn: conn, accepted: ok, err: err}
}

func (c *Coordinator) cancelOutgoing() {
	if c.state != StateOutgoingPending {
		return
	}
	if c.pendingOutCancel != nil {
		c.pendingOutCancel()
	}
	target := c.pendingOutID
	c.pendingOutID = ""
	c.pendingOutCancel = nil
	c.state = StateIdle
	c.hub.Broadcast(controlbus.TypeConnectionRequestCancelled, controlbus.DeviceIDPayload{DeviceID: target})
}

func (c *Coordinator) acceptIncoming(targetID string) {
	if c.state != StateIncomingPending || c.pendingIn == nil || c.pendingIn.remote.ID != targetID {
		return
	}
	conn := c.pendingIn.conn
	session.SendConnectResponse(conn, true)
	c.pendingIn = nil
	c.hub.ClearPendingInbound()
	c.becomeConnected(conn, targetID, RoleControlled)
}

func (c *Coordinator) rejectIncoming(targetID string) {
	if c.state != StateIncomingPending || c.pendingIn == nil || c.pendingIn.remote.ID != targetID {
		return
	}
	session.SendConnectResponse(c.pendingIn.conn, false)
	c.pendingIn.conn.Close()
	c.pendingIn = nil
	c.state = StateIdle
	c.hub.ClearPendingInbound()
}

func (c *Coordinator) becomeConnected(conn net.Conn, remoteID string, role Role) {
	sess := session.New(conn, remoteID, conn.RemoteAddr().String(), c.logger)
	c.sess = sess
	c.state = StateConnected
	c.role = role

	go func() {
		err := sess.RunWriter()
		c.sessionDone <- sessionClosed{err: err}
	}()
	go func() {
		err := sess.RunReader(func(m wire.Message) error {
			c.sessionMsgs <- m
			return nil
		})
		sess.Close()
		c.sessionDone <- sessionClosed{err: err}
	}()

	if role == RoleController {
		c.startCapture()
	} else {
		c.startReplay()
	}

	c.hub.Broadcast(controlbus.TypeConnectionEstablished, controlbus.DeviceIDPayload{DeviceID: remoteID})
}

func (c *Coordinator) startCapture() {
	if c.hook != nil {
		return
	}
	h := capture.New(c.logger)
	if err := h.Start(); err != nil {
		c.logger.Error().Err(err).Msg("failed to start capture")
		return
	}
	c.hook = h
}

func (c *Coordinator) stopCapture() {
	if c.hook == nil {
		return
	}
	c.hook.Stop()
	c.hook = nil
}

func (c *Coordinator) startReplay() {
	backend, err := replay.NewUinputBackend("/dev/uinput")
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to start replay backend")
		c.hub.Broadcast(controlbus.TypeConnectionFailed, controlbus.ConnectionFailedPayload{Reason: reasonReplayUnavailable})
		c.teardownSession()
		return
	}
	c.backend = backend
	c.dispatcher = replay.NewDispatcher(backend, c.logger)
}

func (c *Coordinator) sendManualInput(p controlbus.InputEventPayload) {
	if c.role != RoleController || c.state != StateConnected || c.sess == nil {
		return
	}
	switch capture.EventType(p.Type) {
	case capture.EventMouseMove:
		if p.DX != 0 || p.DY != 0 {
			c.sess.Enqueue(wire.MouseMove{DX: p.DX, DY: p.DY})
		}
	case capture.EventMouseDown, capture.EventMouseUp:
		c.sess.Enqueue(wire.MouseClick{Button: p.Button, Down: capture.EventType(p.Type) == capture.EventMouseDown})
	case capture.EventKeyDown, capture.EventKeyUp:
		c.sess.Enqueue(wire.KeyPress{Code: p.KeyCode, Down: capture.EventType(p.Type) == capture.EventKeyDown})
	}
}

func (c *Coordinator) disconnect() {
	if c.state != StateConnected {
		return
	}
	if c.sess != nil {
		c.sess.Enqueue(wire.Disconnect{})
		time.Sleep(20 * time.Millisecond) // best-effort delivery before teardown
	}
	c.teardownSession()
	c.hub.Broadcast(controlbus.TypeDisconnected, struct{}{})
}

func (c *Coordinator) teardownSession() {
	if c.sess != nil {
		c.sess.Close()
		c.sess = nil
	}
	if c.hook != nil {
		c.hook.Stop()
		c.hook = nil
	}
	if c.dispatcher != nil {
		c.dispatcher.Stop()
		c.dispatcher = nil
	}
	if c.backend != nil {
		c.backend.Close()
		c.backend = nil
	}
	c.state = StateIdle
	c.role = RoleNone
}
