package channel

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/c360/canvaskit/binding"
	"github.com/c360/canvaskit/errors"
	"github.com/c360/canvaskit/pkg/timestamp"
)

// Control message types exchanged with the channel server. Any other type
// is treated as a data message and routed by topic.
const (
	TypeSubscribe    = "subscribe"
	TypeUnsubscribe  = "unsubscribe"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeAuthenticate = "authenticate"
)

// Message is the wire envelope for everything sent over the channel.
// Control messages use the reserved types above; data messages carry an
// application-defined type plus the topic they belong to. SentAt is Unix
// milliseconds. Servers may add fields beyond these; they are ignored.
type Message struct {
	Type   string `json:"type"`
	Topic  string `json:"topic,omitempty"`
	Data   any    `json:"data,omitempty"`
	SentAt int64  `json:"timestamp,omitempty"`
	ID     string `json:"id,omitempty"`
}

// newControl builds a control envelope for the given type and topic.
func newControl(msgType, topic string) Message {
	return Message{
		Type:   msgType,
		Topic:  topic,
		SentAt: timestamp.ToUnixMs(time.Now()),
		ID:     uuid.NewString(),
	}
}

// newAuthenticate builds the authenticate envelope sent after every
// successful connection when a tenant context is configured.
func newAuthenticate(bctx binding.Context) Message {
	return Message{
		Type:   TypeAuthenticate,
		Data:   bctx,
		SentAt: timestamp.ToUnixMs(time.Now()),
		ID:     uuid.NewString(),
	}
}

// newData builds a data envelope for Send.
func newData(msgType, topic string, data any) Message {
	return Message{
		Type:   msgType,
		Topic:  topic,
		Data:   data,
		SentAt: timestamp.ToUnixMs(time.Now()),
		ID:     uuid.NewString(),
	}
}

// parseMessage decodes an inbound frame into a Message. Frames must be
// JSON objects with a non-empty type; everything else about the payload
// is left to the dispatch layer.
func parseMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, errors.WrapInvalid(
			fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
			"Manager", "read", "message decode")
	}
	if msg.Type == "" {
		return Message{}, errors.WrapInvalid(
			fmt.Errorf("message missing type field"),
			"Manager", "read", "message validation")
	}
	return msg, nil
}
