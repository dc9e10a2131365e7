package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// MaxFrameSize is the largest payload accepted by Decode/ReadMessage
// (spec §4.1). Declared lengths above this are rejected before any
// allocation happens.
const MaxFrameSize = 64 * 1024

// lengthPrefixSize is the size in bytes of the big-endian frame length
// prefix (spec §4.1, §6).
const lengthPrefixSize = 4

// ErrFrameTooLarge is returned when a frame's declared length exceeds
// MaxFrameSize.
var ErrFrameTooLarge = errors.New("wire: frame exceeds max size")

// ErrShortFrame is returned when a connection is closed mid-frame.
var ErrShortFrame = errors.New("wire: short frame")

// ErrUnknownKind is returned when a payload's leading tag byte does not
// match any known Kind.
var ErrUnknownKind = errors.New("wire: unknown message kind")

// Encode produces a single contiguous buffer: a 4-byte big-endian
// length prefix followed by the encoded payload. Callers write the
// whole buffer in one call so that, with TCP_NODELAY, the message
// leaves the host in one segment (spec §4.1).
func Encode(m Message) ([]byte, error) {
	payload, err := encodePayload(m)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, lengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:lengthPrefixSize], uint32(len(payload)))
	copy(buf[lengthPrefixSize:], payload)
	return buf, nil
}

// Decode parses a single payload (without its length prefix) into a
// Message.
func Decode(payload []byte) (Message, error) {
	if len(payload) == 0 {
		return nil, errors.Wrap(ErrUnknownKind, "empty payload")
	}

	kind := Kind(payload[0])
	body := payload[1:]

	switch kind {
	case KindDiscovery:
		return decodeDiscovery(body)
	case KindMouseMove:
		return decodeMouseMove(body)
	case KindMouseClick:
		return decodeMouseClick(body)
	case KindKeyPress:
		return decodeKeyPress(body)
	case KindConnectRequest:
		return ConnectRequest{}, nil
	case KindConnectResponse:
		return decodeConnectResponse(body)
	case KindDisconnect:
		return Disconnect{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "tag %d", kind)
	}
}

// WriteMessage encodes m and writes it to w as a single Write call.
func WriteMessage(w io.Writer, m Message) error {
	frame, err := Encode(m)
	if err != nil {
		return errors.Wrap(err, "wire: encode")
	}
	if _, err := w.Write(frame); err != nil {
		return errors.Wrap(err, "wire: write frame")
	}
	return nil
}

// ReadMessage reads exactly one length-prefixed frame from r and
// decodes it. It rejects oversized declared lengths before allocating
// the payload buffer (spec §4.1, §8).
func ReadMessage(r io.Reader) (Message, error) {
	var lenBuf [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, errors.Wrap(ErrShortFrame, err.Error())
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, errors.Wrapf(ErrFrameTooLarge, "declared %d bytes", n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(ErrShortFrame, err.Error())
	}

	return Decode(payload)
}

func encodePayload(m Message) ([]byte, error) {
	switch v := m.(type) {
	case Discovery:
		return encodeDiscovery(v), nil
	case MouseMove:
		return encodeMouseMove(v), nil
	case MouseClick:
		return encodeMouseClick(v), nil
	case KeyPress:
		return encodeKeyPress(v), nil
	case ConnectRequest:
		return []byte{byte(KindConnectRequest)}, nil
	case ConnectResponse:
		return encodeConnectResponse(v), nil
	case Disconnect:
		return []byte{byte(KindDisconnect)}, nil
	default:
		return nil, errors.Errorf("wire: unencodable message type %T", m)
	}
}

func encodeDiscovery(d Discovery) []byte {
	idBytes := []byte(d.ID)
	nameBytes := []byte(d.Name)

	buf := make([]byte, 1+2+len(idBytes)+2+len(nameBytes)+2)
	i := 0
	buf[i] = byte(KindDiscovery)
	i++
	i += putString(buf[i:], idBytes)
	i += putString(buf[i:], nameBytes)
	binary.BigEndian.PutUint16(buf[i:], d.Port)
	return buf
}

func decodeDiscovery(body []byte) (Message, error) {
	id, rest, err := takeString(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode Discovery.ID")
	}
	name, rest, err := takeString(rest)
	if err != nil {
		return nil, errors.Wrap(err, "decode Discovery.Name")
	}
	if len(rest) < 2 {
		return nil, errors.Wrap(ErrShortFrame, "decode Discovery.Port")
	}
	port := binary.BigEndian.Uint16(rest)
	return Discovery{ID: id, Name: name, Port: port}, nil
}

func encodeMouseMove(m MouseMove) []byte {
	buf := make([]byte, 1+4+4)
	buf[0] = byte(KindMouseMove)
	binary.BigEndian.PutUint32(buf[1:5], uint32(m.DX))
	binary.BigEndian.PutUint32(buf[5:9], uint32(m.DY))
	return buf
}

func decodeMouseMove(body []byte) (Message, error) {
	if len(body) < 8 {
		return nil, errors.Wrap(ErrShortFrame, "decode MouseMove")
	}
	dx := int32(binary.BigEndian.Uint32(body[0:4]))
	dy := int32(binary.BigEndian.Uint32(body[4:8]))
	return MouseMove{DX: dx, DY: dy}, nil
}

func encodeMouseClick(m MouseClick) []byte {
	buf := make([]byte, 3)
	buf[0] = byte(KindMouseClick)
	buf[1] = m.Button
	buf[2] = boolByte(m.Down)
	return buf
}

func decodeMouseClick(body []byte) (Message, error) {
	if len(body) < 2 {
		return nil, errors.Wrap(ErrShortFrame, "decode MouseClick")
	}
	return MouseClick{Button: body[0], Down: body[1] != 0}, nil
}

func encodeKeyPress(k KeyPress) []byte {
	buf := make([]byte, 1+4+1)
	buf[0] = byte(KindKeyPress)
	binary.BigEndian.PutUint32(buf[1:5], k.Code)
	buf[5] = boolByte(k.Down)
	return buf
}

func decodeKeyPress(body []byte) (Message, error) {
	if len(body) < 5 {
		return nil, errors.Wrap(ErrShortFrame, "decode KeyPress")
	}
	code := binary.BigEndian.Uint32(body[0:4])
	return KeyPress{Code: code, Down: body[4] != 0}, nil
}

func encodeConnectResponse(c ConnectResponse) []byte {
	return []byte{byte(KindConnectResponse), boolByte(c.OK)}
}

func decodeConnectResponse(body []byte) (Message, error) {
	if len(body) < 1 {
		return nil, errors.Wrap(ErrShortFrame, "decode ConnectResponse")
	}
	return ConnectResponse{OK: body[0] != 0}, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// putString writes a uint16 length prefix followed by b into dst and
// returns the number of bytes written.
func putString(dst []byte, b []byte) int {
	binary.BigEndian.PutUint16(dst, uint16(len(b)))
	copy(dst[2:], b)
	return 2 + len(b)
}

// takeString reads a uint16-length-prefixed string from src, returning
// the string, the remaining bytes, and any error.
func takeString(src []byte) (string, []byte, error) {
	if len(src) < 2 {
		return "", nil, ErrShortFrame
	}
	n := int(binary.BigEndian.Uint16(src))
	if len(src) < 2+n {
		return "", nil, ErrShortFrame
	}
	return string(src[2 : 2+n]), src[2+n:], nil
}
