package relay

import "errors"

// Errors reported back to the offending connection. None of them closes the
// connection.
var (
	ErrMalformedInput        = errors.New("malformed input")
	ErrRateLimited           = errors.New("rate limited")
	ErrInvalidRoomOrPassword = errors.New("invalid room or password")
)

var errSessionClosed = errors.New("session closed")

// clientMessages holds the text sent to clients in error frames. The wording
// is part of the wire protocol.
var clientMessages = []struct {
	err  error
	text string
}{
	{ErrMalformedInput, "Invalid message format."},
	{ErrRateLimited, "Rate limit exceeded. Please slow down."},
	{ErrInvalidRoomOrPassword, "Invalid room or password"},
}

// ClientMessage returns the error text a client sees for err, or "" when err
// is not one of the reported errors.
func ClientMessage(err error) string {
	for _, m := range clientMessages {
		if errors.Is(err, m.err) {
			return m.text
		}
	}
	return ""
}

// reason is the metrics label for a reported error.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedInput):
		return "invalid_format"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidRoomOrPassword):
		return "invalid_room_or_password"
	default:
		return "other"
	}
}
