package knx

import (
	"encoding/json"
	"fmt"
	"time"
)

// TelegramType identifies the kind of group communication a telegram
// carries. The names follow the conventional KNX APCI service names,
// which is also how the bus bridge labels them on the wire.
type TelegramType string

const (
	// TelegramWrite carries a value to devices listening on the address.
	TelegramWrite TelegramType = "GroupValueWrite"

	// TelegramRead asks the responding device for its current value.
	TelegramRead TelegramType = "GroupValueRead"

	// TelegramResponse answers a read request.
	TelegramResponse TelegramType = "GroupValueResponse"
)

// Direction of a telegram relative to the bus.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Telegram is one decoded group telegram as exchanged with the bus
// bridge over MQTT.
//
// Payload holds the bridge-decoded value as raw JSON: a bool for 1-bit
// datapoints, a number for scaled ones. Read telegrams carry no payload.
type Telegram struct {
	// Source is the sender's individual address, e.g. "1.1.5".
	Source string `json:"source"`

	// Destination is the target group address, e.g. "1/2/3".
	Destination string `json:"destination"`

	// Type is the group service carried by the telegram.
	Type TelegramType `json:"type"`

	// Payload is the decoded value, absent for reads.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Direction is "incoming" (from the bus) or "outgoing" (sent by us).
	Direction string `json:"direction"`

	// Timestamp is when the bridge saw the telegram (UTC).
	Timestamp time.Time `json:"timestamp"`
}

// BoolPayload decodes the payload as a 1-bit value.
func (t Telegram) BoolPayload() (bool, error) {
	var v bool
	if err := json.Unmarshal(t.Payload, &v); err != nil {
		return false, fmt.Errorf("%w: payload %s is not a bool", ErrInvalidTelegram, t.Payload)
	}
	return v, nil
}

// FloatPayload decodes the payload as a numeric value.
func (t Telegram) FloatPayload() (float64, error) {
	var v float64
	if err := json.Unmarshal(t.Payload, &v); err != nil {
		return 0, fmt.Errorf("%w: payload %s is not a number", ErrInvalidTelegram, t.Payload)
	}
	return v, nil
}

// ParseTelegram decodes a telegram JSON document from the bridge.
// The destination must be a valid group address and the type one of
// the three group services.
func ParseTelegram(data []byte) (Telegram, error) {
	var t Telegram
	if err := json.Unmarshal(data, &t); err != nil {
		return Telegram{}, fmt.Errorf("%w: %w", ErrInvalidTelegram, err)
	}

	if !ValidGroupAddress(t.Destination) {
		return Telegram{}, fmt.Errorf("%w: destination %q", ErrInvalidTelegram, t.Destination)
	}

	switch t.Type {
	case TelegramWrite, TelegramRead, TelegramResponse:
	default:
		return Telegram{}, fmt.Errorf("%w: unknown type %q", ErrInvalidTelegram, t.Type)
	}

	if t.Direction == "" {
		t.Direction = DirectionIncoming
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}

	return t, nil
}

// GroupRequest is the payload the gateway publishes to ask the bridge
// for a group write, read or response.
type GroupRequest struct {
	// Address is the target group address.
	Address string `json:"address"`

	// Value is the value to write or respond with, absent for reads.
	Value any `json:"value,omitempty"`

	// Timestamp is when the request was issued (UTC).
	Timestamp time.Time `json:"timestamp"`
}
