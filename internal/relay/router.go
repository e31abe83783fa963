package relay

import (
	"errors"
	"log/slog"

	"github.com/Tyrowin/roomrelay/internal/metrics"
)

// Router is the entry point the transport drives. It throttles and parses
// each inbound frame, then dispatches it to the registry by message type.
type Router struct {
	rooms   *Registry
	limiter *RateLimiter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRouter wires a router over rooms and limiter. logger and m may be nil.
func NewRouter(rooms *Registry, limiter *RateLimiter, logger *slog.Logger, m *metrics.Metrics) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = NewRateLimiter(DefaultWindow, DefaultMaxMessages)
	}
	return &Router{
		rooms:   rooms,
		limiter: limiter,
		logger:  logger,
		metrics: m,
	}
}

// Rooms returns the registry the router dispatches to.
func (rt *Router) Rooms() *Registry { return rt.rooms }

// Open creates the session for a newly accepted connection.
func (rt *Router) Open(conn Sender, addr string) *Session {
	s := NewSession(conn, addr)
	rt.metrics.ConnectionOpened()
	rt.logger.Debug("session opened", "session_id", s.id, "remote_addr", addr)
	return s
}

// Close retires s after its connection has gone away, removing it from its
// room. Calling Close more than once is harmless.
func (rt *Router) Close(s *Session) {
	if !rt.rooms.Leave(s) {
		return
	}
	rt.metrics.ConnectionClosed()
	rt.logger.Debug("session closed", "session_id", s.id, "remote_addr", s.addr)
}

// HandleMessage processes one inbound frame from s. Frames from the same
// session must be handed over one at a time, in arrival order.
//
// The returned error is informational: any reply the client needs has already
// been queued, and the connection stays usable. Unknown message types are
// ignored and return nil.
func (rt *Router) HandleMessage(s *Session, raw []byte) error {
	if !rt.limiter.Allow(s) {
		rt.reject(s, ErrRateLimited)
		return ErrRateLimited
	}

	env, err := Parse(raw)
	if err != nil {
		rt.reject(s, ErrMalformedInput)
		return err
	}

	switch env.Type {
	case TypeCreateRoom:
		rt.rooms.Create(Normalize(env.Room), env.Password, s)
	case TypeJoinRoom:
		if err := rt.rooms.Join(Normalize(env.Room), env.Password, s); err != nil {
			if errors.Is(err, errSessionClosed) {
				return nil
			}
			rt.logger.Debug("join rejected", "session_id", s.id, "error", err)
			return err
		}
	case TypePublicKey, TypeEncryptedMessage:
		n, ok := rt.rooms.BroadcastFrom(s, env.Raw)
		if !ok {
			rt.logger.Debug("dropping message from session outside any room",
				"session_id", s.id,
				"type", env.Type,
			)
			return nil
		}
		rt.metrics.Relayed(env.Type, n)
	default:
		rt.logger.Debug("ignoring message", "session_id", s.id, "type", env.Type)
	}
	return nil
}

// reject sends the error reply for err to s.
func (rt *Router) reject(s *Session, err error) {
	rt.metrics.Rejected(reason(err))
	rt.logger.Warn("message rejected",
		"session_id", s.id,
		"remote_addr", s.addr,
		"reason", reason(err),
	)
	s.send(errorFrame(err))
}
