package session

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/shareflow/shareflow/internal/wire"
)

// ErrWrongHandshakeMessage is returned when a peer sends anything other
// than the expected handshake frame (spec §4.3, §7).
var ErrWrongHandshakeMessage = errors.New("session: unexpected handshake message")

// SendConnectRequest writes the handshake-initiator frame.
func SendConnectRequest(conn net.Conn) error {
	return wire.WriteMessage(conn, wire.ConnectRequest{})
}

// AwaitConnectRequest blocks, up to deadline, for the acceptor side to
// receive exactly one ConnectRequest frame (spec §4.3).
func AwaitConnectRequest(conn net.Conn, deadline time.Duration) error {
	if err := conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
		return errors.Wrap(err, "session: set handshake deadline")
	}
	defer conn.SetReadDeadline(time.Time{})

	msg, err := wire.ReadMessage(conn)
	if err != nil {
		return errors.Wrap(err, "session: read ConnectRequest")
	}
	if _, ok := msg.(wire.ConnectRequest); !ok {
		return errors.Wrapf(ErrWrongHandshakeMessage, "got %T", msg)
	}
	return nil
}

// SendConnectResponse writes the handshake-acceptor reply.
func SendConnectResponse(conn net.Conn, ok bool) error {
	return wire.WriteMessage(conn, wire.ConnectResponse{OK: ok})
}

// AwaitConnectResponse blocks, up to timeout or ctx cancellation, for
// the initiator to receive ConnectResponse. A cancelled ctx drops the
// connection silently, per spec §4.3's single-shot cancellation
// signal. Callers pass config.Session.HandshakeTimeout; HandshakeTimeout
// in transport.go is the spec's default value for that setting.
func AwaitConnectResponse(ctx context.Context, conn net.Conn, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return false, errors.Wrap(err, "session: set handshake deadline")
	}
	defer conn.SetReadDeadline(time.Time{})

	type result struct {
		ok  bool
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		msg, err := wire.ReadMessage(conn)
		if err != nil {
			resCh <- result{err: errors.Wrap(err, "session: read ConnectResponse")}
			return
		}
		resp, ok := msg.(wire.ConnectResponse)
		if !ok {
			resCh <- result{err: errors.Wrapf(ErrWrongHandshakeMessage, "got %T", msg)}
			return
		}
		resCh <- result{ok: resp.OK}
	}()

	select {
	case <-ctx.Done():
		conn.Close()
		return false, ctx.Err()
	case r := <-resCh:
		return r.ok, r.err
	}
}
