package coordinator

import (
	"net"

	"github.com/shareflow/shareflow/internal/device"
)

// inboundConn is a freshly accepted TCP connection that has already
// completed the ConnectRequest half of the handshake (spec §4.2), sent
// by the session acceptor goroutine once it knows the connection is a
// real ShareFlow peer and not a stray TCP client.
type inboundConn struct {
	conn   net.Conn
	remote device.Descriptor
}

// outgoingResult is the result of a background dial+handshake attempt
// started by requestConnection (spec §4.2, §4.7).
type outgoingResult struct {
	targetID string
	conn     net.Conn
	accepted bool
	err      error
}

// sessionClosed signals that the active session's reader or writer
// loop returned, whether from a clean Disconnect or a network error.
type sessionClosed struct {
	err error
}
