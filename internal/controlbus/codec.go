package controlbus

import "encoding/json"

// encode builds a complete JSON envelope frame for msgType/payload. A
// marshal failure here means payload is not the plain-struct shape
// every outbound message uses, which is a programming error.
func encode(msgType string, payload interface{}) []byte {
	b, err := json.Marshal(Envelope{Type: msgType, Payload: encodePayload(payload)})
	if err != nil {
		return []byte(`{"type":"` + msgType + `"}`)
	}
	return b
}

func decodeEnvelope(data []byte) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, false
	}
	if env.Type == "" {
		return Envelope{}, false
	}
	return env, true
}

// DecodePayload unmarshals an inbound message's payload into dst,
// used by the coordinator once it has switched on msg.Type.
func DecodePayload(raw []byte, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
