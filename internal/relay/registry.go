package relay

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Tyrowin/roomrelay/internal/metrics"
)

type room struct {
	password Password
	members  []*Session
}

// peers returns a copy of the member list without s.
func (rm *room) peers(s *Session) []*Session {
	out := make([]*Session, 0, len(rm.members))
	for _, m := range rm.members {
		if m != s {
			out = append(out, m)
		}
	}
	return out
}

func (rm *room) remove(s *Session) {
	if i := slices.Index(rm.members, s); i >= 0 {
		rm.members = slices.Delete(rm.members, i, i+1)
	}
}

// Registry owns every room and the room membership of every session. A single
// mutex guards the room map, the member lists, and each session's current
// room; frames are delivered only after it is released.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*room

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRegistry returns an empty registry. m may be nil.
func NewRegistry(logger *slog.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rooms:   make(map[string]*room),
		logger:  logger,
		metrics: m,
	}
}

// Create installs a room at id with creator as its only member, replacing any
// room already stored there, and confirms with a room_created frame. Members
// of a replaced room are detached: they stay connected but belong to no room
// until they create or join again.
func (r *Registry) Create(id string, password Password, creator *Session) {
	r.mu.Lock()
	if creator.closed {
		r.mu.Unlock()
		return
	}
	r.detachLocked(creator)

	displaced := 0
	if prev, ok := r.rooms[id]; ok {
		for _, m := range prev.members {
			m.roomID, m.inRoom = "", false
		}
		displaced = len(prev.members)
	}
	r.rooms[id] = &room{password: password, members: []*Session{creator}}
	creator.roomID, creator.inRoom = id, true
	total := len(r.rooms)
	r.mu.Unlock()

	r.metrics.RoomCreated()
	r.metrics.SetRooms(total)
	r.logger.Info("room created",
		"room", id,
		"session_id", creator.id,
		"displaced_members", displaced,
	)
	creator.send(roomCreatedFrame)
}

// Join adds joiner to the room at id when the room exists and password
// matches it exactly, JSON kind included. Existing members are sent
// user_joined. On failure only the joiner hears about it, through an error
// frame, and no state changes.
func (r *Registry) Join(id string, password Password, joiner *Session) error {
	r.mu.Lock()
	if joiner.closed {
		r.mu.Unlock()
		return errSessionClosed
	}
	rm, ok := r.rooms[id]
	if !ok || !rm.password.Matches(password) {
		r.mu.Unlock()
		r.metrics.ObserveJoin(metrics.JoinRejected)
		r.metrics.Rejected(reason(ErrInvalidRoomOrPassword))
		joiner.send(errorFrame(ErrInvalidRoomOrPassword))
		return fmt.Errorf("join room %q: %w", id, ErrInvalidRoomOrPassword)
	}

	r.detachLocked(joiner)
	peers := rm.peers(joiner)
	rm.members = append(rm.members, joiner)
	joiner.roomID, joiner.inRoom = id, true
	r.mu.Unlock()

	r.metrics.ObserveJoin(metrics.JoinOK)
	r.logger.Info("room joined",
		"room", id,
		"session_id", joiner.id,
		"members", len(peers)+1,
	)
	deliver(peers, userJoinedFrame)
	return nil
}

// Broadcast delivers payload to every member of the room at id except
// sender and returns how many peers accepted it. Nothing is delivered unless
// sender is itself a member of that room, so an unknown id or a sender outside
// the room is a silent no-op.
func (r *Registry) Broadcast(id string, sender *Session, payload []byte) int {
	r.mu.Lock()
	peers := r.peersLocked(id, sender)
	r.mu.Unlock()

	return deliver(peers, payload)
}

// BroadcastFrom broadcasts payload into sender's current room. It reports
// false, delivering nothing, when sender is not in a room.
func (r *Registry) BroadcastFrom(sender *Session, payload []byte) (int, bool) {
	r.mu.Lock()
	if !sender.inRoom {
		r.mu.Unlock()
		return 0, false
	}
	peers := r.peersLocked(sender.roomID, sender)
	r.mu.Unlock()

	return deliver(peers, payload), true
}

// peersLocked returns the members of room id other than sender, or nil when
// sender does not belong to that room.
func (r *Registry) peersLocked(id string, sender *Session) []*Session {
	if !sender.inRoom || sender.roomID != id {
		return nil
	}
	rm, ok := r.rooms[id]
	if !ok {
		return nil
	}
	return rm.peers(sender)
}

// Leave retires s: it is removed from its room and can no longer create or
// join one. It reports whether s was still open.
func (r *Registry) Leave(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.closed {
		return false
	}
	if s.inRoom {
		r.logger.Debug("member left", "room", s.roomID, "session_id", s.id)
	}
	r.detachLocked(s)
	s.closed = true
	return true
}

// RoomOf returns the id of the room s currently belongs to.
func (r *Registry) RoomOf(s *Session) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return s.roomID, s.inRoom
}

// Members returns the ids of the sessions in the room at id, in join order.
func (r *Registry) Members(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[id]
	if !ok {
		return nil
	}
	ids := make([]string, len(rm.members))
	for i, m := range rm.members {
		ids[i] = m.id
	}
	return ids
}

// Len returns the number of rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// detachLocked removes s from its current room, if any.
func (r *Registry) detachLocked(s *Session) {
	if !s.inRoom {
		return
	}
	if rm, ok := r.rooms[s.roomID]; ok {
		rm.remove(s)
	}
	s.roomID, s.inRoom = "", false
}

func deliver(peers []*Session, frame []byte) int {
	n := 0
	for _, p := range peers {
		if p.send(frame) {
			n++
		}
	}
	return n
}
