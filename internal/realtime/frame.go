package realtime

import "encoding/json"

// Frame is the JSON envelope of every websocket message. Ack echoes the
// client's correlation id on replies.
type Frame struct {
	Event string `json:"event"`
	Ack   string `json:"ack,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// EventAck is the event name of a reply to a client request.
const EventAck = "ack"

// Encode marshals an outbound frame.
func Encode(event string, data any) ([]byte, error) {
	return json.Marshal(Frame{Event: event, Data: data})
}

// EncodeAck marshals a reply correlated with the client's ack id.
func EncodeAck(ack string, data any) ([]byte, error) {
	return json.Marshal(Frame{Event: EventAck, Ack: ack, Data: data})
}
