package admin_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rymc/roomserver/internal/v1/admin"
	"github.com/rymc/roomserver/internal/v1/protocol/wire"
	"github.com/rymc/roomserver/internal/v1/room"
	"github.com/rymc/roomserver/internal/v1/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct{ sent []wire.Packet }

func (f *fakeConn) ID() string         { return "fake" }
func (f *fakeConn) Send(p wire.Packet) { f.sent = append(f.sent, p) }

func TestConsoleDisbandsRoom(t *testing.T) {
	table := room.NewTable()
	require.True(t, table.CreateRoom("R1", wire.UserProfile{UserID: 1, Username: "Host"}).IsOK())
	require.True(t, table.AddUser("R1", wire.UserProfile{UserID: 1, Username: "Host"}, &fakeConn{}, false).IsOK())

	secStore := security.New(t.TempDir() + "/security.json")
	var out bytes.Buffer
	console := admin.NewConsole(table, secStore, &out, zap.NewNop())
	console.Run(strings.NewReader("/disband R1\n"))

	_, err := table.Room("R1")
	assert.Equal(t, room.ErrRoomNotFound, err)
}

func TestConsoleBanAndUnban(t *testing.T) {
	table := room.NewTable()
	secStore := security.New(t.TempDir() + "/security.json")
	var out bytes.Buffer
	console := admin.NewConsole(table, secStore, &out, zap.NewNop())

	console.Run(strings.NewReader("/ban ip 1.2.3.4 0 testing\n"))
	_, banned := secStore.IsBanned(security.BanTypeIP, "1.2.3.4")
	assert.True(t, banned)

	console.Run(strings.NewReader("/unban ip 1.2.3.4\n"))
	_, stillBanned := secStore.IsBanned(security.BanTypeIP, "1.2.3.4")
	assert.False(t, stillBanned)
}

func TestConsoleReportsUnknownCommand(t *testing.T) {
	table := room.NewTable()
	secStore := security.New(t.TempDir() + "/security.json")
	var out bytes.Buffer
	console := admin.NewConsole(table, secStore, &out, zap.NewNop())

	console.Run(strings.NewReader("/frobnicate\n"))
	assert.Contains(t, out.String(), "unknown command")
}

func TestConsoleIgnoresSlashlessInput(t *testing.T) {
	table := room.NewTable()
	secStore := security.New(t.TempDir() + "/security.json")
	var out bytes.Buffer
	console := admin.NewConsole(table, secStore, &out, zap.NewNop())

	console.Run(strings.NewReader("rooms\nban ip 1.2.3.4 0 testing\n"))
	assert.Empty(t, out.String())
	_, banned := secStore.IsBanned(security.BanTypeIP, "1.2.3.4")
	assert.False(t, banned)
}
