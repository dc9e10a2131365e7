// Package session implements TCP accept/connect, the ConnectRequest/
// ConnectResponse handshake, and split-duplex I/O for an established
// ShareFlow session (spec §4.3).
package session

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/shareflow/shareflow/internal/discovery"
)

// ConnectTimeout bounds the TCP connect attempt on the initiating side
// (spec §4.3, §7).
const ConnectTimeout = 5 * time.Second

// HandshakeTimeout is the default bound on how long the initiator
// waits for ConnectResponse (spec §4.3, §7). The coordinator passes
// config.Session.HandshakeTimeout instead, and bounds pending inbound
// requests by config.Session.PendingInboundTTL.
const HandshakeTimeout = 30 * time.Second

// Listener accepts incoming session connections on the well-known
// session port, promoting each to TCP_NODELAY before returning it
// (spec §4.3, §6).
type Listener struct {
	ln net.Listener
}

// Listen binds the TCP listener to 0.0.0.0:Port (spec §6).
func Listen() (*Listener, error) {
	return ListenOn(discovery.Port)
}

// ListenOn binds the TCP listener to 0.0.0.0:port. Exposed separately
// from Listen so tests can bind an ephemeral port.
func ListenOn(port uint16) (*Listener, error) {
	ln, err := net.Listen("tcp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(int(port))))
	if err != nil {
		return nil, errors.Wrap(err, "session: bind listener")
	}
	return &Listener{ln: ln}, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Accept blocks for the next inbound connection and enables
// TCP_NODELAY on it (spec §4.3).
func (l *Listener) Accept() (net.Conn, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	if err := setNoDelay(conn); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "session: set TCP_NODELAY")
	}
	return conn, nil
}

// Dial connects to addr within timeout, honoring ctx cancellation, and
// enables TCP_NODELAY on success (spec §4.3, §7). Callers pass
// config.Session.ConnectTimeout; ConnectTimeout above is the spec's
// default value for that setting.
func Dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp4", addr)
	if err != nil {
		return nil, errors.Wrap(err, "session: dial")
	}
	if err := setNoDelay(conn); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "session: set TCP_NODELAY")
	}
	return conn, nil
}

func setNoDelay(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	return tcpConn.SetNoDelay(true)
}

