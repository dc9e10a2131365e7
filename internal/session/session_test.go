package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shareflow/shareflow/internal/wire"
)

func TestListenDialHandshake(t *testing.T) {
	ln, err := ListenOn(0)
	require.NoError(t, err)
	defer ln.Close()

	addr := ln.Addr().String()

	serverDone := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverDone <- err
			return
		}
		defer conn.Close()

		if err := AwaitConnectRequest(conn, HandshakeTimeout); err != nil {
			serverDone <- err
			return
		}
		serverDone <- SendConnectResponse(conn, true)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := Dial(ctx, addr, ConnectTimeout)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, SendConnectRequest(conn))

	ok, err := AwaitConnectResponse(ctx, conn, HandshakeTimeout)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, <-serverDone)
}

func TestSessionEnqueueOrderPreserved(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	s := New(a, "device-remote", b.RemoteAddr().String(), zerolog.Nop())

	go func() {
		_ = s.RunWriter()
	}()

	s.Enqueue(wire.MouseMove{DX: 1, DY: 1})
	s.Enqueue(wire.MouseMove{DX: 2, DY: 2})
	s.Enqueue(wire.MouseMove{DX: 3, DY: 3})

	for _, want := range []int32{1, 2, 3} {
		msg, err := wire.ReadMessage(b)
		require.NoError(t, err)
		mm, ok := msg.(wire.MouseMove)
		require.True(t, ok)
		assert.Equal(t, want, mm.DX)
	}
}

func TestSessionCloseStopsWriter(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	s := New(a, "device-remote", "", zerolog.Nop())
	writerDone := make(chan error, 1)
	go func() { writerDone <- s.RunWriter() }()

	require.NoError(t, s.Close())

	select {
	case err := <-writerDone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("writer did not exit after Close")
	}
}

func TestSessionReaderDispatch(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	s := New(a, "device-remote", "", zerolog.Nop())

	received := make(chan wire.Message, 1)
	go func() {
		_ = s.RunReader(func(m wire.Message) error {
			received <- m
			return nil
		})
	}()

	require.NoError(t, wire.WriteMessage(b, wire.KeyPress{Code: 65, Down: true}))

	select {
	case m := <-received:
		assert.Equal(t, wire.KeyPress{Code: 65, Down: true}, m)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatched message")
	}
}
