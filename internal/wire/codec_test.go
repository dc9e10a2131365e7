package wire

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []Message{
		Discovery{ID: "device-bryns-mbp", Name: "Bryn's MacBook", Port: 8080},
		MouseMove{DX: -12, DY: 34},
		MouseClick{Button: 1, Down: true},
		KeyPress{Code: 65, Down: false},
		ConnectRequest{},
		ConnectResponse{OK: true},
		ConnectResponse{OK: false},
		Disconnect{},
	}

	for _, m := range cases {
		frame, err := Encode(m)
		require.NoError(t, err)

		require.GreaterOrEqual(t, len(frame), lengthPrefixSize)
		declared := binary.BigEndian.Uint32(frame[:lengthPrefixSize])
		assert.Equal(t, int(declared), len(frame)-lengthPrefixSize)

		got, err := Decode(frame[lengthPrefixSize:])
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
}

func TestReadMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	msg := MouseMove{DX: 7, DY: -7}
	require.NoError(t, WriteMessage(&buf, msg))

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestReadMessageRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], MaxFrameSize+1)
	buf.Write(lenPrefix[:])
	// No payload bytes follow; ReadMessage must reject before trying to read them.

	_, err := ReadMessage(&buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode([]byte{0xFF})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestReadMessageShortFrame(t *testing.T) {
	var buf bytes.Buffer
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], 10)
	buf.Write(lenPrefix[:])
	buf.Write([]byte{1, 2, 3}) // fewer than declared 10 bytes, then EOF

	_, err := ReadMessage(&buf)
	require.Error(t, err)
}
