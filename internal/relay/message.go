package relay

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Inbound message types.
const (
	TypeCreateRoom       = "create_room"
	TypeJoinRoom         = "join_room"
	TypePublicKey        = "public_key"
	TypeEncryptedMessage = "encrypted_message"
)

// Outbound message types.
const (
	TypeRoomCreated = "room_created"
	TypeUserJoined  = "user_joined"
	TypeError       = "error"
)

// Envelope is the parsed view of an inbound frame. Only the fields the router
// acts on are decoded; Raw keeps the frame exactly as it arrived so relayed
// messages reach peers unchanged.
type Envelope struct {
	Type     string
	Room     string
	Password Password
	Raw      []byte
}

// Parse decodes raw as a JSON object. A type or room that is missing or not a
// JSON string decodes as "". The password keeps its JSON kind; see Password.
// JSON values other than objects are rejected as malformed.
func Parse(raw []byte) (Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if fields == nil {
		return Envelope{}, fmt.Errorf("%w: message is not an object", ErrMalformedInput)
	}

	return Envelope{
		Type:     stringField(fields, "type"),
		Room:     stringField(fields, "room"),
		Password: parsePassword(fields),
		Raw:      raw,
	}, nil
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Normalize maps a room name to its registry key: surrounding whitespace is
// trimmed and the result lowercased, so "Room1 " and "room1" name the same
// room.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type reply struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

var (
	roomCreatedFrame = mustEncode(reply{Type: TypeRoomCreated})
	userJoinedFrame  = mustEncode(reply{Type: TypeUserJoined})
)

// errorFrame builds the error reply for err.
func errorFrame(err error) []byte {
	return mustEncode(reply{Type: TypeError, Message: ClientMessage(err)})
}

func mustEncode(r reply) []byte {
	b, err := json.Marshal(r)
	if err != nil {
		panic(fmt.Sprintf("relay: encode %s reply: %v", r.Type, err))
	}
	return b
}
