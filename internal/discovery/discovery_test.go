package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shareflow/shareflow/internal/device"
)

func TestSenderListenerRoundTrip(t *testing.T) {
	logger := zerolog.Nop()

	listener, err := NewListenerOn(logger, 0)
	require.NoError(t, err)
	defer listener.Close()

	listenerAddr := listener.LocalAddr().(*net.UDPAddr)

	sender, err := NewSenderTo(logger, uint16(listenerAddr.Port))
	require.NoError(t, err)
	defer sender.Close()

	received := make(chan Announce, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = listener.Run(ctx, func(a Announce) {
			select {
			case received <- a:
			default:
			}
		})
	}()

	self := device.Descriptor{ID: "device-a", Name: "A", IP: "192.168.1.2", Kind: device.DefaultKind}
	dst := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: listenerAddr.Port}
	require.NoError(t, sender.SendDirect(self, Port, dst))

	select {
	case ann := <-received:
		assert.Equal(t, "device-a", ann.Message.ID)
		assert.Equal(t, "A", ann.Message.Name)
		assert.Equal(t, Port, ann.Message.Port)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for announce")
	}
}

func TestListenerDropsMalformed(t *testing.T) {
	logger := zerolog.Nop()
	listener, err := NewListenerOn(logger, 0)
	require.NoError(t, err)
	defer listener.Close()

	addr := listener.LocalAddr().(*net.UDPAddr)

	conn, err := net.DialUDP("udp4", nil, addr)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = listener.Run(ctx, func(Announce) {}) }()

	_, err = conn.Write([]byte{0, 0, 0, 99, 1, 2, 3})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return listener.Malformed() > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPeerTablePruning(t *testing.T) {
	pt := NewPeerTable()
	now := time.Now()

	pt.Upsert(device.Descriptor{ID: "device-a", IP: "10.0.0.1"}, now.Add(-20*time.Second))
	pt.Upsert(device.Descriptor{ID: "device-b", IP: "10.0.0.2"}, now)

	snap := pt.Snapshot(now)
	require.Len(t, snap, 1)
	assert.Equal(t, "device-b", snap[0].ID)
}

func TestPeerTableFindByIP(t *testing.T) {
	pt := NewPeerTable()
	pt.Upsert(device.Descriptor{ID: "device-a", IP: "10.0.0.5"}, time.Now())

	d, ok := pt.FindByIP("10.0.0.5")
	require.True(t, ok)
	assert.Equal(t, "device-a", d.ID)

	_, ok = pt.FindByIP("10.0.0.99")
	assert.False(t, ok)
}
