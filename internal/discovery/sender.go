package discovery

import (
	"context"
	"net"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/shareflow/shareflow/internal/device"
	"github.com/shareflow/shareflow/internal/wire"
)

// AnnounceInterval is how often a Discovery announce is broadcast
// (spec §4.2, §6).
const AnnounceInterval = 1 * time.Second

// Sender periodically broadcasts a Discovery announce for the local
// device to every computed directed-broadcast address (spec §4.2).
// It is bound to an ephemeral port with SO_BROADCAST enabled, the same
// socket-option pattern as dantte-lp-gobfd's UDPSender.
type Sender struct {
	conn     *net.UDPConn
	destPort uint16
	logger   zerolog.Logger
}

// NewSender binds an ephemeral broadcast-enabled UDP socket that
// announces on the well-known discovery Port.
func NewSender(logger zerolog.Logger) (*Sender, error) {
	return NewSenderTo(logger, Port)
}

// NewSenderTo binds an ephemeral broadcast-enabled UDP socket that
// announces on destPort. Exposed separately from NewSender so tests
// can target an ephemeral listener instead of the fixed, often-
// privileged production port.
func NewSenderTo(logger zerolog.Logger, destPort uint16) (*Sender, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var opErr error
			err := c.Control(func(fd uintptr) {
				//nolint:gosec // G115: socket fds are always small positive ints.
				opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
			})
			if err != nil {
				return err
			}
			return opErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", ":0")
	if err != nil {
		return nil, errors.Wrap(err, "discovery: bind sender socket")
	}

	return &Sender{
		conn:     pc.(*net.UDPConn),
		destPort: destPort,
		logger:   logger.With().Str("component", "discovery.sender").Logger(),
	}, nil
}

// Close releases the sender socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}

// Run broadcasts the local descriptor's Discovery announce to every
// directed-broadcast address once per AnnounceInterval, until ctx is
// cancelled (spec §4.2, §6).
func (s *Sender) Run(ctx context.Context, self device.Descriptor, sessionPort uint16) error {
	ticker := time.NewTicker(AnnounceInterval)
	defer ticker.Stop()

	msg := wire.Discovery{ID: self.ID, Name: self.Name, Port: sessionPort}
	frame, err := wire.Encode(msg)
	if err != nil {
		return errors.Wrap(err, "discovery: encode announce")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.announceOnce(frame)
		}
	}
}

func (s *Sender) announceOnce(frame []byte) {
	addrs, err := device.BroadcastAddrs()
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to compute broadcast addresses")
		return
	}

	for _, addr := range addrs {
		dst := &net.UDPAddr{IP: addr, Port: int(s.destPort)}
		if _, err := s.conn.WriteToUDP(frame, dst); err != nil {
			s.logger.Debug().Err(err).Str("addr", dst.String()).Msg("announce send failed")
		}
	}
}

// SendDirect encodes and sends a Discovery announce straight to dst,
// bypassing broadcast-address computation. Used by tests that exercise
// the wire format over loopback without relying on LAN broadcast.
func (s *Sender) SendDirect(self device.Descriptor, sessionPort uint16, dst *net.UDPAddr) error {
	frame, err := wire.Encode(wire.Discovery{ID: self.ID, Name: self.Name, Port: sessionPort})
	if err != nil {
		return errors.Wrap(err, "discovery: encode announce")
	}
	_, err = s.conn.WriteToUDP(frame, dst)
	return err
}
