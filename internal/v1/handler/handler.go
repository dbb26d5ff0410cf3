// Package handler implements the per-connection packet dispatcher: it maps
// each decoded serverbound packet to room-table mutations and outbound
// sends, following the permission-check-then-mutate-then-broadcast shape the
// teacher's room handlers use, grounded on the original MainHandler's
// authenticate/create/join/leave/select-chart/start methods.
package handler

import (
	"context"

	"github.com/rymc/roomserver/internal/v1/conn"
	"github.com/rymc/roomserver/internal/v1/identity"
	"github.com/rymc/roomserver/internal/v1/metrics"
	"github.com/rymc/roomserver/internal/v1/monitors"
	"github.com/rymc/roomserver/internal/v1/protocol/wire"
	"github.com/rymc/roomserver/internal/v1/room"
	"go.uber.org/zap"
)

// Handler owns the per-connection state a serverbound packet sequence needs:
// the sender's Connection and, once authenticated, its resolved profile.
type Handler struct {
	conn     room.Conn
	table    *room.Table
	identity *identity.Client
	monitors *monitors.Set
	log      *zap.Logger

	authenticated bool
	userID        int32
	username      string
}

// New builds a Handler for one freshly-accepted Connection.
func New(c room.Conn, table *room.Table, identityClient *identity.Client, monitorSet *monitors.Set, log *zap.Logger) *Handler {
	return &Handler{
		conn:     c,
		table:    table,
		identity: identityClient,
		monitors: monitorSet,
		log:      log,
	}
}

// OnReceive is installed as the Connection's ReceiveFunc.
func (h *Handler) OnReceive(p wire.Packet) {
	name := packetName(p)
	metrics.PacketsTotal.WithLabelValues("serverbound", name).Inc()
	timer := metrics.NewPacketTimer(name)
	defer timer.ObserveDuration()

	switch pkt := p.(type) {
	case wire.ServerBoundAuthenticate:
		h.handleAuthenticate(pkt)
	case wire.ServerBoundCreateRoom:
		h.handleCreateRoom(pkt)
	case wire.ServerBoundJoinRoom:
		h.handleJoinRoom(pkt)
	case wire.ServerBoundLeaveRoom:
		h.handleLeaveRoom()
	case wire.ServerBoundSelectChart:
		h.handleSelectChart(pkt)
	case wire.ServerBoundRequestStart:
		h.handleRequestStart()
	default:
		h.log.Warn("unhandled serverbound packet", zap.String("packet", name))
	}
}

// OnClose is installed as the Connection's CloseFunc: on disconnect, apply
// the same host-transfer-and-leave protocol as an explicit LeaveRoom (§4.G).
func (h *Handler) OnClose(reason conn.CloseReason) {
	if !h.authenticated {
		return
	}
	h.table.UnregisterOnline(h.userID)
	h.leaveCurrentRoom()
}

func (h *Handler) handleAuthenticate(p wire.ServerBoundAuthenticate) {
	info, err := h.identity.Fetch(context.Background(), p.Token)
	if err != nil {
		h.log.Info("authenticate failed", zap.Error(err))
		h.conn.Send(wire.AuthenticateFailure("identity service unavailable"))
		return
	}

	h.authenticated = true
	h.userID = info.ID
	h.username = info.Name
	isMonitor := h.monitors.Contains(info.ID)
	h.table.RegisterOnline(info.ID, h.conn)

	profile := wire.FullUserProfile{
		Profile: wire.UserProfile{UserID: info.ID, Username: info.Name},
		Monitor: isMonitor,
	}

	var roomInfo *wire.RoomInfo
	if roomID, ok := h.table.GetRoomOfUser(info.ID); ok {
		if rm, rerr := h.table.Room(roomID); rerr.IsOK() {
			snap := rm.Snapshot()
			isHost := snap.Host != nil && *snap.Host == info.ID
			entries, state, live, perr := h.table.Participants(roomID)
			if perr.IsOK() {
				ri := wire.RoomInfo{
					RoomID:  roomID,
					State:   state,
					Live:    live,
					Locked:  snap.Locked,
					Cycle:   snap.Cycle,
					IsHost:  isHost,
					IsReady: false,
				}
				for _, e := range entries {
					ri.Entries = append(ri.Entries, wire.RoomInfoEntry{UserID: e.Profile.UserID, Profile: e})
				}
				roomInfo = &ri
			}
		}
	}

	h.conn.Send(wire.AuthenticateSuccess(profile, roomInfo))
	h.conn.Send(wire.ClientBoundMessage{Body: wire.ChatMessage{
		SenderID:   0,
		SenderName: "server",
		Text:       "Welcome, " + info.Name + ".",
	}})
	h.conn.Send(wire.ClientBoundMessage{Body: wire.ChatMessage{
		SenderID:   0,
		SenderName: "server",
		Text:       "Create or join a room to get started.",
	}})
}

func (h *Handler) handleCreateRoom(p wire.ServerBoundCreateRoom) {
	if !h.authenticated {
		return
	}
	hostProfile := wire.UserProfile{UserID: h.userID, Username: h.username}
	if err := h.table.CreateRoom(p.RoomID, hostProfile); !err.IsOK() {
		h.conn.Send(wire.CreateRoomFailed(reasonFor(err)))
		return
	}
	isMonitor := h.monitors.Contains(h.userID)
	if err := h.table.AddUser(p.RoomID, hostProfile, h.conn, isMonitor); !err.IsOK() {
		h.conn.Send(wire.CreateRoomFailed(reasonFor(err)))
		return
	}
	metrics.RoomParticipants.WithLabelValues(p.RoomID).Set(1)
	h.conn.Send(wire.CreateRoomSuccess())
}

// handleJoinRoom. The global-monitor branch is preserved as a deliberate
// no-op: the original implementation attaches a monitor without any state
// mutation. TODO: decide what a monitor join should actually do to the room
// (attach as a live observer?) once the client behavior is confirmed.
func (h *Handler) handleJoinRoom(p wire.ServerBoundJoinRoom) {
	if !h.authenticated {
		return
	}
	if h.monitors.Contains(h.userID) {
		return
	}

	profile := wire.UserProfile{UserID: h.userID, Username: h.username}
	if err := h.table.AddUser(p.RoomID, profile, h.conn, false); !err.IsOK() {
		h.conn.Send(wire.JoinRoomFailed(reasonFor(err)))
		return
	}

	entries, state, live, err := h.table.Participants(p.RoomID)
	if !err.IsOK() {
		h.conn.Send(wire.JoinRoomFailed(reasonFor(err)))
		return
	}
	h.conn.Send(wire.JoinRoomSuccess(state, entries, live))
	h.table.Broadcast(p.RoomID, wire.ClientBoundOnJoinRoom{
		Profile: wire.FullUserProfile{Profile: profile, Monitor: false},
	}, h.conn)
}

func (h *Handler) handleLeaveRoom() {
	if !h.authenticated {
		return
	}
	roomID, ok := h.table.GetRoomOfUser(h.userID)
	if !ok {
		h.conn.Send(wire.LeaveRoomFailed("not in room"))
		return
	}
	h.finishLeave(roomID)
	h.conn.Send(wire.LeaveRoomSuccess())
}

// leaveCurrentRoom is the disconnect-hook variant of handleLeaveRoom: no
// reply is sent, since the Connection is already closing.
func (h *Handler) leaveCurrentRoom() {
	roomID, ok := h.table.GetRoomOfUser(h.userID)
	if !ok {
		return
	}
	h.finishLeave(roomID)
}

// finishLeave runs the host-transfer-on-leave protocol and the resulting
// broadcasts shared by an explicit LeaveRoom and the disconnect hook.
func (h *Handler) finishLeave(roomID string) {
	result, err := h.table.RemoveUser(roomID, h.userID)
	if !err.IsOK() {
		return
	}
	if result.RoomDestroyed {
		metrics.RoomParticipants.DeleteLabelValues(roomID)
		return
	}

	h.table.Broadcast(roomID, wire.ClientBoundMessage{Body: wire.LeaveRoomMessage{
		UserID:   h.userID,
		Username: h.username,
	}}, nil)

	if result.HostChanged {
		if c, ok := h.table.OnlineConnection(result.NewHostID); ok {
			c.Send(wire.ClientBoundChangeHost{IsHost: true})
		}
	}
}

func (h *Handler) handleSelectChart(p wire.ServerBoundSelectChart) {
	roomID, isHost, reason, found := h.requireHost()
	if !found {
		h.conn.Send(wire.SelectChartFailed(reason))
		return
	}
	if !isHost {
		h.conn.Send(wire.SelectChartFailed("not host"))
		return
	}
	if err := h.table.SetChart(roomID, p.ChartID); !err.IsOK() {
		h.conn.Send(wire.SelectChartFailed(reasonFor(err)))
		return
	}
	chartID := p.ChartID
	h.table.Broadcast(roomID, wire.ClientBoundChangeState{State: wire.SelectChartState(&chartID)}, nil)
	h.table.Broadcast(roomID, wire.ClientBoundMessage{Body: wire.SelectChartMessage{
		UserID:   h.userID,
		Username: h.username,
		ChartID:  p.ChartID,
	}}, nil)
	h.conn.Send(wire.SelectChartSuccess())
}

func (h *Handler) handleRequestStart() {
	roomID, isHost, reason, found := h.requireHost()
	if !found {
		h.conn.Send(wire.RequestStartFailed(reason))
		return
	}
	if !isHost {
		h.conn.Send(wire.RequestStartFailed("not host"))
		return
	}
	rm, rerr := h.table.Room(roomID)
	if !rerr.IsOK() {
		h.conn.Send(wire.RequestStartFailed(reasonFor(rerr)))
		return
	}
	if rm.State().Kind != wire.GameStateSelectChart {
		h.conn.Send(wire.RequestStartFailed("not in chart selection"))
		return
	}
	newState := wire.GameState{Kind: wire.GameStateWaitForReady}
	if err := h.table.SetState(roomID, newState); !err.IsOK() {
		h.conn.Send(wire.RequestStartFailed(reasonFor(err)))
		return
	}
	h.table.Broadcast(roomID, wire.ClientBoundChangeState{State: newState}, nil)
	h.conn.Send(wire.RequestStartSuccess())
}

// requireHost resolves the caller's current room and host status without
// sending anything, so SelectChart and RequestStart can each reply with
// their own packet type on failure. found is false whenever roomID/isHost
// are meaningless and reason explains why.
func (h *Handler) requireHost() (roomID string, isHost bool, reason string, found bool) {
	if !h.authenticated {
		return "", false, "not in room", false
	}
	roomID, ok := h.table.GetRoomOfUser(h.userID)
	if !ok {
		return "", false, "not in room", false
	}
	isHost, err := h.table.IsHost(roomID, h.userID)
	if !err.IsOK() {
		return "", false, reasonFor(err), false
	}
	return roomID, isHost, "", true
}

func reasonFor(err room.Error) string {
	switch err {
	case room.ErrRoomExists:
		return "room already exists"
	case room.ErrRoomNotFound:
		return "room not found"
	case room.ErrUserExists:
		return "already in room"
	case room.ErrUserNotFound:
		return "user not found"
	case room.ErrNotHost:
		return "not host"
	case room.ErrNotInRoom:
		return "not in room"
	default:
		return string(err)
	}
}

func packetName(p wire.Packet) string {
	switch p.(type) {
	case wire.ServerBoundAuthenticate:
		return "authenticate"
	case wire.ServerBoundCreateRoom:
		return "create_room"
	case wire.ServerBoundJoinRoom:
		return "join_room"
	case wire.ServerBoundLeaveRoom:
		return "leave_room"
	case wire.ServerBoundSelectChart:
		return "select_chart"
	case wire.ServerBoundRequestStart:
		return "request_start"
	default:
		return "unknown"
	}
}
