package room_test

import (
	"testing"

	"github.com/rymc/roomserver/internal/v1/protocol/wire"
	"github.com/rymc/roomserver/internal/v1/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id   string
	sent []wire.Packet
}

func (f *fakeConn) ID() string { return f.id }
func (f *fakeConn) Send(p wire.Packet) { f.sent = append(f.sent, p) }

func TestCreateRoomRejectsDuplicate(t *testing.T) {
	tbl := room.NewTable()
	host := wire.UserProfile{UserID: 42, Username: "Alice"}
	assert.Equal(t, room.OK, tbl.CreateRoom("R1", host))
	assert.Equal(t, room.ErrRoomExists, tbl.CreateRoom("R1", host))
}

func TestAddUserSingleRoomInvariant(t *testing.T) {
	tbl := room.NewTable()
	alice := wire.UserProfile{UserID: 42, Username: "Alice"}
	require.Equal(t, room.OK, tbl.CreateRoom("R1", alice))
	require.Equal(t, room.OK, tbl.AddUser("R1", alice, &fakeConn{id: "c1"}, false))

	require.Equal(t, room.OK, tbl.CreateRoom("R2", wire.UserProfile{UserID: 99, Username: "Bob"}))
	assert.Equal(t, room.ErrUserExists, tbl.AddUser("R1", alice, &fakeConn{id: "c1b"}, false))

	roomID, ok := tbl.GetRoomOfUser(42)
	require.True(t, ok)
	assert.Equal(t, "R1", roomID)

	// Cross-room: alice is already seated in R1, so joining R2 must be
	// rejected rather than silently moving her.
	assert.Equal(t, room.ErrUserExists, tbl.AddUser("R2", alice, &fakeConn{id: "c2"}, false))

	roomID, ok = tbl.GetRoomOfUser(42)
	require.True(t, ok)
	assert.Equal(t, "R1", roomID)
}

func TestJoinRoomParticipantsOrderedUsersThenMonitors(t *testing.T) {
	tbl := room.NewTable()
	alice := wire.UserProfile{UserID: 42, Username: "Alice"}
	bob := wire.UserProfile{UserID: 99, Username: "Bob"}
	watcher := wire.UserProfile{UserID: 7, Username: "Watcher"}
	require.Equal(t, room.OK, tbl.CreateRoom("R1", alice))
	require.Equal(t, room.OK, tbl.AddUser("R1", alice, &fakeConn{id: "c1"}, false))
	require.Equal(t, room.OK, tbl.AddUser("R1", watcher, &fakeConn{id: "c3"}, true))
	require.Equal(t, room.OK, tbl.AddUser("R1", bob, &fakeConn{id: "c2"}, false))

	entries, state, live, err := tbl.Participants("R1")
	require.Equal(t, room.OK, err)
	assert.True(t, live)
	assert.Equal(t, wire.GameStateSelectChart, state.Kind)
	require.Len(t, entries, 3)
	assert.Equal(t, int32(42), entries[0].Profile.UserID)
	assert.False(t, entries[0].Monitor)
	assert.Equal(t, int32(99), entries[1].Profile.UserID)
	assert.False(t, entries[1].Monitor)
	assert.Equal(t, int32(7), entries[2].Profile.UserID)
	assert.True(t, entries[2].Monitor)
}

func TestHostTransferOnLeavePicksFromPreLeaveSnapshot(t *testing.T) {
	tbl := room.NewTable()
	alice := wire.UserProfile{UserID: 42, Username: "Alice"}
	bob := wire.UserProfile{UserID: 99, Username: "Bob"}
	require.Equal(t, room.OK, tbl.CreateRoom("R1", alice))
	require.Equal(t, room.OK, tbl.AddUser("R1", alice, &fakeConn{id: "c1"}, false))
	require.Equal(t, room.OK, tbl.AddUser("R1", bob, &fakeConn{id: "c2"}, false))

	result, err := tbl.RemoveUser("R1", 42)
	require.Equal(t, room.OK, err)
	assert.False(t, result.RoomDestroyed)
	assert.True(t, result.DepartedWasHost)
	assert.True(t, result.HostChanged)
	assert.Equal(t, int32(99), result.NewHostID)

	isHost, err := tbl.IsHost("R1", 99)
	require.Equal(t, room.OK, err)
	assert.True(t, isHost)

	_, ok := tbl.GetRoomOfUser(42)
	assert.False(t, ok)
}

func TestLastMemberLeaveDestroysRoom(t *testing.T) {
	tbl := room.NewTable()
	bob := wire.UserProfile{UserID: 99, Username: "Bob"}
	require.Equal(t, room.OK, tbl.CreateRoom("R1", bob))
	require.Equal(t, room.OK, tbl.AddUser("R1", bob, &fakeConn{id: "c2"}, false))

	result, err := tbl.RemoveUser("R1", 99)
	require.Equal(t, room.OK, err)
	assert.True(t, result.RoomDestroyed)

	_, rerr := tbl.Room("R1")
	assert.Equal(t, room.ErrRoomNotFound, rerr)
}

func TestHostTransferExcludesMonitorsFromCandidates(t *testing.T) {
	tbl := room.NewTable()
	alice := wire.UserProfile{UserID: 42, Username: "Alice"}
	watcher := wire.UserProfile{UserID: 7, Username: "Watcher"}
	require.Equal(t, room.OK, tbl.CreateRoom("R1", alice))
	require.Equal(t, room.OK, tbl.AddUser("R1", alice, &fakeConn{id: "c1"}, false))
	require.Equal(t, room.OK, tbl.AddUser("R1", watcher, &fakeConn{id: "c3"}, true))

	result, err := tbl.RemoveUser("R1", 42)
	require.Equal(t, room.OK, err)
	assert.False(t, result.RoomDestroyed)
	assert.False(t, result.HostChanged)

	_, rerr := tbl.Room("R1")
	require.Equal(t, room.OK, rerr)
}

func TestBroadcastExcludesGivenConnection(t *testing.T) {
	tbl := room.NewTable()
	alice := wire.UserProfile{UserID: 42, Username: "Alice"}
	bob := wire.UserProfile{UserID: 99, Username: "Bob"}
	c1 := &fakeConn{id: "c1"}
	c2 := &fakeConn{id: "c2"}
	require.Equal(t, room.OK, tbl.CreateRoom("R1", alice))
	require.Equal(t, room.OK, tbl.AddUser("R1", alice, c1, false))
	require.Equal(t, room.OK, tbl.AddUser("R1", bob, c2, false))

	require.Equal(t, room.OK, tbl.Broadcast("R1", wire.LeaveRoomSuccess(), c1))
	assert.Empty(t, c1.sent)
	assert.Len(t, c2.sent, 1)
}
