package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"github.com/rymc/roomserver/internal/v1/conn"
	"github.com/rymc/roomserver/internal/v1/handler"
	"github.com/rymc/roomserver/internal/v1/identity"
	"github.com/rymc/roomserver/internal/v1/monitors"
	"github.com/rymc/roomserver/internal/v1/protocol/wire"
	"github.com/rymc/roomserver/internal/v1/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	id   string
	sent []wire.Packet
}

func (f *fakeConn) ID() string         { return f.id }
func (f *fakeConn) Send(p wire.Packet) { f.sent = append(f.sent, p) }

func newTestHandler(t *testing.T, identityID int32, identityName string, monitorSet *monitors.Set) (*handler.Handler, *fakeConn, *room.Table) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(identity.UserInfo{ID: identityID, Name: identityName})
	}))
	t.Cleanup(srv.Close)

	identityClient := identity.New(srv.URL, srv.Client(), zap.NewNop())
	table := room.NewTable()
	if monitorSet == nil {
		monitorSet = monitors.NewEmpty()
	}
	c := &fakeConn{id: "c1"}
	h := handler.New(c, table, identityClient, monitorSet, zap.NewNop())
	return h, c, table
}

func lastSent(c *fakeConn) wire.Packet {
	if len(c.sent) == 0 {
		return nil
	}
	return c.sent[len(c.sent)-1]
}

func TestAuthenticateSendsSuccessThenTwoWelcomeMessages(t *testing.T) {
	h, c, _ := newTestHandler(t, 42, "Alice", nil)
	h.OnReceive(wire.ServerBoundAuthenticate{Token: "tok"})

	require.Len(t, c.sent, 3)
	result, ok := c.sent[0].(wire.ClientBoundAuthenticateResult)
	require.True(t, ok)
	assert.True(t, result.Ok)

	for _, p := range c.sent[1:] {
		msg, ok := p.(wire.ClientBoundMessage)
		require.True(t, ok)
		_, ok = msg.Body.(wire.ChatMessage)
		assert.True(t, ok)
	}
}

func TestCreateRoomRequiresAuthentication(t *testing.T) {
	h, c, table := newTestHandler(t, 42, "Alice", nil)
	h.OnReceive(wire.ServerBoundCreateRoom{RoomID: "R1"})

	assert.Empty(t, c.sent)
	_, err := table.Room("R1")
	assert.Equal(t, room.ErrRoomNotFound, err)
}

func TestCreateRoomThenJoinRoomBroadcastsToExistingMembers(t *testing.T) {
	hostHandler, hostConn, table := newTestHandler(t, 1, "Host", nil)
	hostHandler.OnReceive(wire.ServerBoundAuthenticate{Token: "tok"})
	hostHandler.OnReceive(wire.ServerBoundCreateRoom{RoomID: "R1"})

	result, ok := lastSent(hostConn).(wire.ClientBoundCreateRoomResult)
	require.True(t, ok)
	assert.True(t, result.Ok)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(identity.UserInfo{ID: 2, Name: "Guest"})
	}))
	defer srv.Close()
	identityClient := identity.New(srv.URL, srv.Client(), zap.NewNop())
	guestConn := &fakeConn{id: "c2"}
	guestHandler := handler.New(guestConn, table, identityClient, monitors.NewEmpty(), zap.NewNop())
	guestHandler.OnReceive(wire.ServerBoundAuthenticate{Token: "tok"})
	guestHandler.OnReceive(wire.ServerBoundJoinRoom{RoomID: "R1"})

	joinResult, ok := lastSent(guestConn).(wire.ClientBoundJoinRoomResult)
	require.True(t, ok)
	assert.True(t, joinResult.Ok)

	found := false
	for _, p := range hostConn.sent {
		if _, ok := p.(wire.ClientBoundOnJoinRoom); ok {
			found = true
		}
	}
	assert.True(t, found, "host should be notified of the new joiner")
}

func TestSelectChartRejectsNonHost(t *testing.T) {
	hostHandler, hostConn, table := newTestHandler(t, 1, "Host", nil)
	hostHandler.OnReceive(wire.ServerBoundAuthenticate{Token: "tok"})
	hostHandler.OnReceive(wire.ServerBoundCreateRoom{RoomID: "R1"})
	_ = hostConn

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(identity.UserInfo{ID: 2, Name: "Guest"})
	}))
	defer srv.Close()
	identityClient := identity.New(srv.URL, srv.Client(), zap.NewNop())
	guestConn := &fakeConn{id: "c2"}
	guestHandler := handler.New(guestConn, table, identityClient, monitors.NewEmpty(), zap.NewNop())
	guestHandler.OnReceive(wire.ServerBoundAuthenticate{Token: "tok"})
	guestHandler.OnReceive(wire.ServerBoundJoinRoom{RoomID: "R1"})
	guestHandler.OnReceive(wire.ServerBoundSelectChart{ChartID: 7})

	result, ok := lastSent(guestConn).(wire.ClientBoundSelectChartResult)
	require.True(t, ok)
	assert.False(t, result.Ok)
}

func TestRequestStartRejectedOutsideChartSelection(t *testing.T) {
	hostHandler, hostConn, table := newTestHandler(t, 1, "Host", nil)
	hostHandler.OnReceive(wire.ServerBoundAuthenticate{Token: "tok"})
	hostHandler.OnReceive(wire.ServerBoundCreateRoom{RoomID: "R1"})
	hostHandler.OnReceive(wire.ServerBoundSelectChart{ChartID: 7})
	hostHandler.OnReceive(wire.ServerBoundRequestStart{})

	first, ok := lastSent(hostConn).(wire.ClientBoundRequestStartResult)
	require.True(t, ok)
	assert.True(t, first.Ok)

	hostHandler.OnReceive(wire.ServerBoundRequestStart{})
	second, ok := lastSent(hostConn).(wire.ClientBoundRequestStartResult)
	require.True(t, ok)
	assert.False(t, second.Ok)

	rm, err := table.Room("R1")
	require.True(t, err.IsOK())
	assert.Equal(t, wire.GameStateWaitForReady, rm.State().Kind)
}

func TestJoinRoomIsNoOpForMonitors(t *testing.T) {
	hostHandler, _, table := newTestHandler(t, 1, "Host", nil)
	hostHandler.OnReceive(wire.ServerBoundAuthenticate{Token: "tok"})
	hostHandler.OnReceive(wire.ServerBoundCreateRoom{RoomID: "R1"})

	monitorSet := monitors.NewEmpty()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(identity.UserInfo{ID: 99, Name: "Watcher"})
	}))
	defer srv.Close()
	require.NoError(t, writeMonitorsFile(t, monitorSet, 99))

	identityClient := identity.New(srv.URL, srv.Client(), zap.NewNop())
	watcherConn := &fakeConn{id: "c3"}
	watcherHandler := handler.New(watcherConn, table, identityClient, monitorSet, zap.NewNop())
	watcherHandler.OnReceive(wire.ServerBoundAuthenticate{Token: "tok"})
	watcherHandler.OnReceive(wire.ServerBoundJoinRoom{RoomID: "R1"})

	_, ok := table.GetRoomOfUser(99)
	assert.False(t, ok, "monitor join must not mutate room membership")
	for _, p := range watcherConn.sent {
		_, isJoinResult := p.(wire.ClientBoundJoinRoomResult)
		assert.False(t, isJoinResult, "monitor join sends no reply packet")
	}
}

func TestDisconnectTransfersHostToRemainingMember(t *testing.T) {
	hostHandler, _, table := newTestHandler(t, 1, "Host", nil)
	hostHandler.OnReceive(wire.ServerBoundAuthenticate{Token: "tok"})
	hostHandler.OnReceive(wire.ServerBoundCreateRoom{RoomID: "R1"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(identity.UserInfo{ID: 2, Name: "Guest"})
	}))
	defer srv.Close()
	identityClient := identity.New(srv.URL, srv.Client(), zap.NewNop())
	guestConn := &fakeConn{id: "c2"}
	guestHandler := handler.New(guestConn, table, identityClient, monitors.NewEmpty(), zap.NewNop())
	guestHandler.OnReceive(wire.ServerBoundAuthenticate{Token: "tok"})
	guestHandler.OnReceive(wire.ServerBoundJoinRoom{RoomID: "R1"})

	hostHandler.OnClose(conn.CloseReasonClient)

	isHost, err := table.IsHost("R1", 2)
	require.True(t, err.IsOK())
	assert.True(t, isHost)

	found := false
	for _, p := range guestConn.sent {
		if ch, ok := p.(wire.ClientBoundChangeHost); ok && ch.IsHost {
			found = true
		}
	}
	assert.True(t, found, "remaining member should receive ChangeHost")
}

func writeMonitorsFile(t *testing.T, monitorSet *monitors.Set, ids ...int32) error {
	t.Helper()
	path := t.TempDir() + "/monitors.txt"
	var lines string
	for _, id := range ids {
		lines += strconv.Itoa(int(id)) + "\n"
	}
	if err := os.WriteFile(path, []byte(lines), 0o600); err != nil {
		return err
	}
	return monitorSet.Reload(path)
}
