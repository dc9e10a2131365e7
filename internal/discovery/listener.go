package discovery

import (
	"context"
	"encoding/binary"
	"net"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/shareflow/shareflow/internal/wire"
)

// Port is the well-known UDP discovery / TCP session port (spec §6).
const Port uint16 = 8080

// recvBufferSize is generous headroom over wire.MaxFrameSize plus the
// 4-byte length prefix a Discovery announce carries inline (spec §4.1).
const recvBufferSize = wire.MaxFrameSize + 8

// Announce is a decoded Discovery datagram paired with its sender.
type Announce struct {
	Message wire.Discovery
	From    *net.UDPAddr
}

// Listener receives Discovery announces on the well-known discovery
// port and delivers well-formed ones to a handler; malformed datagrams
// are counted and dropped (spec §4.2).
type Listener struct {
	conn      *net.UDPConn
	logger    zerolog.Logger
	malformed atomic.Uint64
}

// NewListener binds the receiver socket to 0.0.0.0:Port (spec §4.2).
func NewListener(logger zerolog.Logger) (*Listener, error) {
	return NewListenerOn(logger, Port)
}

// NewListenerOn binds the receiver socket to 0.0.0.0:port. Exposed
// separately from NewListener so tests can bind an ephemeral port
// instead of the fixed, often-privileged production port.
func NewListenerOn(logger zerolog.Logger, port uint16) (*Listener, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: int(port)})
	if err != nil {
		return nil, errors.Wrap(err, "discovery: bind listener socket")
	}
	return &Listener{
		conn:   conn,
		logger: logger.With().Str("component", "discovery.listener").Logger(),
	}, nil
}

// LocalAddr returns the listener's bound address.
func (l *Listener) LocalAddr() net.Addr {
	return l.conn.LocalAddr()
}

// Close releases the listener socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Malformed returns the number of datagrams dropped for failing to
// decode as a Discovery message.
func (l *Listener) Malformed() uint64 {
	return l.malformed.Load()
}

// Run decodes incoming datagrams and invokes handle for each
// well-formed Discovery announce, until ctx is cancelled. Suppressing
// echoes of the local host's own announces is the coordinator's
// responsibility (spec §4.2).
func (l *Listener) Run(ctx context.Context, handle func(Announce)) error {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		l.conn.Close()
		close(done)
	}()

	buf := make([]byte, recvBufferSize)
	for {
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-done:
				return nil
			default:
				l.logger.Debug().Err(err).Msg("recv error")
				continue
			}
		}

		ann, ok := l.decode(buf[:n])
		if !ok {
			continue
		}
		handle(Announce{Message: ann, From: addr})
	}
}

// decode strips the 4-byte length prefix (present because the sender
// reuses the session-protocol encoder) and parses the payload.
func (l *Listener) decode(datagram []byte) (wire.Discovery, bool) {
	if len(datagram) < 4 {
		l.malformed.Add(1)
		return wire.Discovery{}, false
	}

	n := binary.BigEndian.Uint32(datagram[:4])
	if n > wire.MaxFrameSize || int(n) > len(datagram)-4 {
		l.malformed.Add(1)
		return wire.Discovery{}, false
	}

	msg, err := wire.Decode(datagram[4 : 4+n])
	if err != nil {
		l.malformed.Add(1)
		return wire.Discovery{}, false
	}

	d, ok := msg.(wire.Discovery)
	if !ok {
		l.malformed.Add(1)
		return wire.Discovery{}, false
	}
	return d, true
}
