package controlbus

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Port is the fixed loopback port the local UI connects to (spec §6).
const Port = 4000

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The bus only ever listens on loopback, and only the bundled
		// local UI is expected to speak to it.
		return true
	},
}

// Server exposes the Hub over a loopback-only HTTP/WebSocket listener,
// grounded on helixml-helix/api/pkg/desktop's handleWSInput upgrade
// pattern.
type Server struct {
	logger zerolog.Logger
	hub    *Hub
	srv    *http.Server
}

// NewServer builds a Server bound to 127.0.0.1:Port. It does not start
// listening until Run is called.
func NewServer(hub *Hub, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "controlbus.server").Logger()
	mux := http.NewServeMux()
	s := &Server{logger: logger, hub: hub}
	mux.HandleFunc("/", s.handleUpgrade)
	s.srv = &http.Server{
		Addr:    net.JoinHostPort("127.0.0.1", strconv.Itoa(Port)),
		Handler: mux,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- errors.Wrap(err, "controlbus: listen")
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "controlbus: shutdown")
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("control bus upgrade failed")
		return
	}
	s.logger.Info().Msg("control bus client connected")
	s.hub.Register(conn)
}
