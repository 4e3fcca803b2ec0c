package webrtc

import "github.com/vmihailenco/msgpack/v5"

// DataMessage is the envelope for binary data channel messages.
type DataMessage struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// DecodePayload decodes the message payload into v
func (m DataMessage) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// NewDataMessage creates a DataMessage with the given type and payload
func NewDataMessage(t string, payload any) (DataMessage, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return DataMessage{}, err
	}

	return DataMessage{
		Type:    t,
		Payload: b,
	}, nil
}

// EncodeDataMessage wraps payload and returns the wire bytes.
func EncodeDataMessage(t string, payload any) ([]byte, error) {
	msg, err := NewDataMessage(t, payload)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(msg)
}

func DecodeDataMessage(data []byte) (DataMessage, error) {
	var msg DataMessage
	err := msgpack.Unmarshal(data, &msg)
	return msg, err
}
