package relay

import "github.com/google/uuid"

// Sender queues an outbound frame on a connection without blocking. It
// reports false when the frame could not be queued, for example because the
// connection is closing or its buffer is full.
type Sender interface {
	Send(frame []byte) bool
}

// Session is the relay's record of one connection. It is created when the
// transport accepts the connection and retired by Router.Close.
type Session struct {
	id   string
	addr string
	conn Sender

	throttle throttle

	// Guarded by Registry.mu.
	roomID string
	inRoom bool
	closed bool
}

// NewSession creates a session for conn. addr is only used for logging.
func NewSession(conn Sender, addr string) *Session {
	return &Session{
		id:   uuid.NewString(),
		addr: addr,
		conn: conn,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Addr returns the remote address the session was opened with.
func (s *Session) Addr() string { return s.addr }

func (s *Session) send(frame []byte) bool {
	if s.conn == nil {
		return false
	}
	return s.conn.Send(frame)
}
