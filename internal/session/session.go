package session

import (
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shareflow/shareflow/internal/wire"
)

// Session is a single established duplex connection carrying
// post-handshake input frames (spec §3). At most one exists per host
// at a time; ownership of that invariant belongs to the coordinator
// (spec §4.7 invariant 1-3).
type Session struct {
	conn           net.Conn
	RemoteID       string
	RemoteEndpoint string

	logger zerolog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []wire.Message
	closed bool
}

// New wraps a promoted connection as a Session. The outbound queue is
// unbounded on the producer side — Enqueue never blocks on the writer
// — implemented as an always-growing slice guarded by a short mutex
// and woken with a sync.Cond rather than a bounded channel. It is not
// lock-free: Enqueue and the writer loop contend on that mutex.
func New(conn net.Conn, remoteID, remoteEndpoint string, logger zerolog.Logger) *Session {
	s := &Session{
		conn:           conn,
		RemoteID:       remoteID,
		RemoteEndpoint: remoteEndpoint,
		logger:         logger.With().Str("component", "session").Str("remote", remoteID).Logger(),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Enqueue appends m to the outbound queue for the writer task to
// drain, preserving enqueue order (spec §4.3, §5). It is a no-op once
// the session is closed.
func (s *Session) Enqueue(m wire.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, m)
	s.cond.Signal()
}

// Close closes the underlying connection, wakes the writer loop so it
// exits, and drops any still-queued outbound messages (spec §5:
// teardown "drains (by dropping) the outbound channel senders").
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
	s.cond.Broadcast()
	return s.conn.Close()
}

// RunWriter drains the outbound queue in enqueue order, one message at
// a time, until the session is closed (spec §4.3, §5: "a dedicated
// writer task drains an unbounded per-session outbound channel").
func (s *Session) RunWriter() error {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return nil
		}
		m := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if err := wire.WriteMessage(s.conn, m); err != nil {
			s.logger.Debug().Err(err).Msg("writer: frame send failed")
			return err
		}
	}
}

// RunReader decodes incoming frames in wire order and dispatches each
// to handle until a read fails or handle returns an error (spec §4.3,
// §5: "a dedicated reader task decodes incoming frames and dispatches
// them"). Either direction failing tears the session down.
func (s *Session) RunReader(handle func(wire.Message) error) error {
	for {
		msg, err := wire.ReadMessage(s.conn)
		if err != nil {
			return err
		}
		if err := handle(msg); err != nil {
			return err
		}
	}
}
