package relay

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(discardLogger(), nil)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"room1", "room1"},
		{"Room1", "room1"},
		{"  Test ", "test"},
		{"\tMiXeD Case\n", "mixed case"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestCreateRepliesToCreatorOnly(t *testing.T) {
	reg := newTestRegistry()
	a := newPeer()

	reg.Create("lobby", TextPassword("p"), a.session)

	frames := a.conn.decoded(t)
	require.Len(t, frames, 1)
	assert.Equal(t, TypeRoomCreated, frames[0]["type"])
	assert.Equal(t, []string{a.session.ID()}, reg.Members("lobby"))

	id, ok := reg.RoomOf(a.session)
	assert.True(t, ok)
	assert.Equal(t, "lobby", id)
}

func TestJoinNotifiesExistingMembers(t *testing.T) {
	reg := newTestRegistry()
	a, b, c := newPeer(), newPeer(), newPeer()

	reg.Create("lobby", TextPassword("p"), a.session)
	a.conn.Reset()

	require.NoError(t, reg.Join("lobby", TextPassword("p"), b.session))
	require.NoError(t, reg.Join("lobby", TextPassword("p"), c.session))

	assert.Equal(t,
		[]string{a.session.ID(), b.session.ID(), c.session.ID()},
		reg.Members("lobby"),
		"members are kept in join order")

	assert.Len(t, a.conn.Frames(), 2, "creator hears about both joins")
	assert.Len(t, b.conn.Frames(), 1, "b hears about c only")
	assert.Empty(t, c.conn.Frames(), "the joiner is not told about itself")

	for _, f := range a.conn.decoded(t) {
		assert.Equal(t, TypeUserJoined, f["type"])
	}
}

func TestJoinFailures(t *testing.T) {
	tests := []struct {
		name     string
		room     string
		password string
	}{
		{"nonexistent room", "nowhere", "p"},
		{"wrong password", "lobby", "wrong"},
		{"empty password", "lobby", ""},
		{"password differs in case", "lobby", "P"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry()
			a, b := newPeer(), newPeer()
			reg.Create("lobby", TextPassword("p"), a.session)
			a.conn.Reset()

			err := reg.Join(tt.room, TextPassword(tt.password), b.session)
			require.ErrorIs(t, err, ErrInvalidRoomOrPassword)

			frames := b.conn.decoded(t)
			require.Len(t, frames, 1, "joiner gets exactly one reply")
			assert.Equal(t, TypeError, frames[0]["type"])
			assert.Equal(t, "Invalid room or password", frames[0]["message"])

			assert.Empty(t, a.conn.Frames(), "members are not told about failed joins")
			assert.Equal(t, []string{a.session.ID()}, reg.Members("lobby"))
			_, inRoom := reg.RoomOf(b.session)
			assert.False(t, inRoom)
		})
	}
}

func TestFailedJoinKeepsCurrentRoom(t *testing.T) {
	reg := newTestRegistry()
	a, b := newPeer(), newPeer()
	reg.Create("first", TextPassword("p"), a.session)
	reg.Create("second", TextPassword("q"), b.session)

	require.Error(t, reg.Join("first", TextPassword("bad"), b.session))

	id, ok := reg.RoomOf(b.session)
	require.True(t, ok)
	assert.Equal(t, "second", id)
	assert.Equal(t, []string{b.session.ID()}, reg.Members("second"))
}

func TestBroadcastReachesPeersOnly(t *testing.T) {
	reg := newTestRegistry()
	members := []peer{newPeer(), newPeer(), newPeer(), newPeer()}
	outsider := newPeer()

	reg.Create("lobby", TextPassword("p"), members[0].session)
	for _, m := range members[1:] {
		require.NoError(t, reg.Join("lobby", TextPassword("p"), m.session))
	}
	reg.Create("elsewhere", TextPassword("p"), outsider.session)
	for _, m := range append(members, outsider) {
		m.conn.Reset()
	}

	payload := []byte(`{"type":"public_key","key":"abc"}`)
	n, ok := reg.BroadcastFrom(members[2].session, payload)
	require.True(t, ok)
	assert.Equal(t, len(members)-1, n)

	for i, m := range members {
		if i == 2 {
			assert.Empty(t, m.conn.Frames(), "sender does not get its own message")
			continue
		}
		require.Len(t, m.conn.Frames(), 1, "member %d", i)
		assert.Equal(t, payload, m.conn.Frames()[0])
	}
	assert.Empty(t, outsider.conn.Frames())
}

func TestBroadcastOutsideRoomIsNoop(t *testing.T) {
	reg := newTestRegistry()
	owner, a := newPeer(), newPeer()

	// A room keyed "" must not be reachable by sessions outside every room.
	reg.Create("", TextPassword(""), owner.session)
	owner.conn.Reset()

	n, ok := reg.BroadcastFrom(a.session, []byte(`{}`))
	assert.False(t, ok)
	assert.Zero(t, n)
	assert.Zero(t, reg.Broadcast("", a.session, []byte(`{}`)))
	assert.Zero(t, reg.Broadcast("missing", a.session, []byte(`{}`)))
	assert.Empty(t, a.conn.Frames())
	assert.Empty(t, owner.conn.Frames())
}

func TestBroadcastRequiresMembership(t *testing.T) {
	reg := newTestRegistry()
	a, b, c := newPeer(), newPeer(), newPeer()
	reg.Create("lobby", TextPassword("p"), a.session)
	require.NoError(t, reg.Join("lobby", TextPassword("p"), b.session))
	reg.Create("elsewhere", TextPassword("p"), c.session)
	a.conn.Reset()

	assert.Zero(t, reg.Broadcast("lobby", c.session, []byte(`{}`)), "members of other rooms cannot reach lobby")
	assert.Empty(t, a.conn.Frames())
	assert.Empty(t, b.conn.Frames())

	assert.Equal(t, 1, reg.Broadcast("lobby", b.session, []byte(`{}`)))
	assert.Len(t, a.conn.Frames(), 1)
}

func TestBroadcastCountsOnlyAcceptedFrames(t *testing.T) {
	reg := newTestRegistry()
	a, b, c := newPeer(), newPeer(), newPeer()
	reg.Create("lobby", TextPassword("p"), a.session)
	require.NoError(t, reg.Join("lobby", TextPassword("p"), b.session))
	require.NoError(t, reg.Join("lobby", TextPassword("p"), c.session))

	c.conn.full = true
	n, ok := reg.BroadcastFrom(a.session, []byte(`{"type":"encrypted_message"}`))
	assert.True(t, ok)
	assert.Equal(t, 1, n)
}

func TestCreateOverwritesExistingRoom(t *testing.T) {
	reg := newTestRegistry()
	a, b, c := newPeer(), newPeer(), newPeer()

	reg.Create("lobby", TextPassword("old"), a.session)
	require.NoError(t, reg.Join("lobby", TextPassword("old"), b.session))

	reg.Create("lobby", TextPassword("new"), c.session)

	assert.Equal(t, []string{c.session.ID()}, reg.Members("lobby"))
	for _, p := range []peer{a, b} {
		_, inRoom := reg.RoomOf(p.session)
		assert.False(t, inRoom, "members of the replaced room are detached")
	}

	require.ErrorIs(t, reg.Join("lobby", TextPassword("old"), a.session), ErrInvalidRoomOrPassword)
	require.NoError(t, reg.Join("lobby", TextPassword("new"), a.session))

	b.conn.Reset()
	n, ok := reg.BroadcastFrom(b.session, []byte(`{"type":"encrypted_message"}`))
	assert.False(t, ok, "a detached member cannot broadcast into the new room")
	assert.Zero(t, n)
}

func TestSwitchingRoomsLeavesPreviousRoom(t *testing.T) {
	reg := newTestRegistry()
	a, b := newPeer(), newPeer()

	reg.Create("one", TextPassword("p"), a.session)
	reg.Create("two", TextPassword("p"), b.session)
	require.NoError(t, reg.Join("two", TextPassword("p"), a.session))

	assert.Empty(t, reg.Members("one"))
	assert.Equal(t, []string{b.session.ID(), a.session.ID()}, reg.Members("two"))
	assert.Equal(t, 2, reg.Len(), "empty rooms are kept")

	require.NoError(t, reg.Join("one", TextPassword("p"), b.session), "an empty room stays joinable")
}

func TestRejoinDoesNotDuplicateMember(t *testing.T) {
	reg := newTestRegistry()
	a, b := newPeer(), newPeer()

	reg.Create("lobby", TextPassword("p"), a.session)
	require.NoError(t, reg.Join("lobby", TextPassword("p"), b.session))
	require.NoError(t, reg.Join("lobby", TextPassword("p"), b.session))

	assert.Equal(t, []string{a.session.ID(), b.session.ID()}, reg.Members("lobby"))
}

func TestLeaveRemovesMember(t *testing.T) {
	reg := newTestRegistry()
	a, b, c := newPeer(), newPeer(), newPeer()

	reg.Create("lobby", TextPassword("p"), a.session)
	require.NoError(t, reg.Join("lobby", TextPassword("p"), b.session))
	require.NoError(t, reg.Join("lobby", TextPassword("p"), c.session))

	assert.True(t, reg.Leave(b.session))
	assert.False(t, reg.Leave(b.session), "second leave reports the session as already closed")
	assert.Equal(t, []string{a.session.ID(), c.session.ID()}, reg.Members("lobby"))

	a.conn.Reset()
	n, ok := reg.BroadcastFrom(c.session, []byte(`{}`))
	require.True(t, ok)
	assert.Equal(t, 1, n)
	assert.Len(t, a.conn.Frames(), 1)
	assert.Empty(t, b.conn.Frames())
}

func TestClosedSessionCannotRejoin(t *testing.T) {
	reg := newTestRegistry()
	a, b := newPeer(), newPeer()
	reg.Create("lobby", TextPassword("p"), a.session)
	reg.Leave(b.session)

	assert.ErrorIs(t, reg.Join("lobby", TextPassword("p"), b.session), errSessionClosed)
	reg.Create("other", TextPassword("p"), b.session)

	assert.Equal(t, []string{a.session.ID()}, reg.Members("lobby"))
	assert.Nil(t, reg.Members("other"))
	assert.Empty(t, b.conn.Frames())
}

func TestConcurrentJoinsKeepEveryMember(t *testing.T) {
	reg := newTestRegistry()
	owner := newPeer()
	reg.Create("lobby", TextPassword("p"), owner.session)

	const joiners = 64
	peers := make([]peer, joiners)
	for i := range peers {
		peers[i] = newPeer()
	}

	var wg sync.WaitGroup
	wg.Add(joiners)
	for i := range peers {
		go func(p peer) {
			defer wg.Done()
			assert.NoError(t, reg.Join("lobby", TextPassword("p"), p.session))
		}(peers[i])
	}
	wg.Wait()

	members := reg.Members("lobby")
	assert.Len(t, members, joiners+1)

	seen := make(map[string]bool, len(members))
	for _, id := range members {
		assert.False(t, seen[id], "duplicate member %s", id)
		seen[id] = true
	}
	for _, p := range peers {
		assert.True(t, seen[p.session.ID()])
	}
	assert.Len(t, owner.conn.Frames(), joiners, "owner sees every join exactly once")
}

func TestConcurrentJoinAndLeave(t *testing.T) {
	reg := newTestRegistry()
	owner := newPeer()
	reg.Create("lobby", TextPassword("p"), owner.session)

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			p := newPeer()
			assert.NoError(t, reg.Join("lobby", TextPassword("p"), p.session))
			reg.BroadcastFrom(p.session, []byte(`{"type":"public_key"}`))
			reg.Leave(p.session)
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{owner.session.ID()}, reg.Members("lobby"))
}
