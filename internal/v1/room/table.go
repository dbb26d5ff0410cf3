package room

import (
	"math/rand"
	"sync"

	"github.com/rymc/roomserver/internal/v1/protocol/wire"
)

// Table is the process-wide rooms table plus the online (authenticated
// user id -> Connection) table. Both are protected by a single exclusive
// lock each, per §5; neither lock is ever held across a network write,
// since Connection.Send only enqueues.
type Table struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	onlineMu sync.RWMutex
	online   map[int32]Conn

	// userRoom tracks the single room (by id) a user currently occupies,
	// enforcing the at-most-one-room invariant in O(1) instead of scanning
	// every room on every lookup.
	userRoom map[int32]string
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{
		rooms:    make(map[string]*Room),
		online:   make(map[int32]Conn),
		userRoom: make(map[int32]string),
	}
}

// RegisterOnline records the Connection for an authenticated user.
func (t *Table) RegisterOnline(userID int32, c Conn) {
	t.onlineMu.Lock()
	defer t.onlineMu.Unlock()
	t.online[userID] = c
}

// UnregisterOnline removes a user from the online table (on connection close).
func (t *Table) UnregisterOnline(userID int32) {
	t.onlineMu.Lock()
	defer t.onlineMu.Unlock()
	delete(t.online, userID)
}

// OnlineConnection returns the Connection registered for userID, if any.
func (t *Table) OnlineConnection(userID int32) (Conn, bool) {
	t.onlineMu.RLock()
	defer t.onlineMu.RUnlock()
	c, ok := t.online[userID]
	return c, ok
}

// CreateRoom inserts a new Room owned by hostProfile. Returns ErrRoomExists
// if roomID is already in use. The caller is responsible for subsequently
// calling AddUser (§4.F).
func (t *Table) CreateRoom(roomID string, hostProfile wire.UserProfile) Error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.rooms[roomID]; exists {
		return ErrRoomExists
	}
	rm := newRoom(roomID)
	host := hostProfile.UserID
	rm.host = &host
	t.rooms[roomID] = rm
	return OK
}

// roomLocked returns the room for id, holding t.mu already.
func (t *Table) roomLocked(roomID string) (*Room, Error) {
	rm, ok := t.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return rm, OK
}

// Room returns the room for id, or ErrRoomNotFound.
func (t *Table) Room(roomID string) (*Room, Error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.roomLocked(roomID)
}

// AddUser inserts profile (with its connection) as a member of roomID.
// isMonitor marks the user as a non-playing observer. Enforces the
// single-room-per-user invariant: a user already in a room — this one or any
// other — is rejected with ErrUserExists rather than silently moved or
// joined twice.
func (t *Table) AddUser(roomID string, profile wire.UserProfile, c Conn, isMonitor bool) Error {
	t.mu.Lock()
	defer t.mu.Unlock()
	rm, rerr := t.roomLocked(roomID)
	if rerr != OK {
		return rerr
	}
	if existingRoom, ok := t.userRoom[profile.UserID]; ok && existingRoom != roomID {
		return ErrUserExists
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if _, exists := rm.users[profile.UserID]; exists {
		return ErrUserExists
	}
	rm.users[profile.UserID] = RoomUser{Profile: profile, Connection: c}
	rm.orderE[profile.UserID] = rm.order.PushBack(profile.UserID)
	if isMonitor {
		rm.monitors[profile.UserID] = struct{}{}
		rm.live = true
	}

	t.userRoom[profile.UserID] = roomID
	return OK
}

// Participants returns the room's combined users-then-monitors participant
// list, state, and live flag — the data JoinRoom.Success needs.
func (t *Table) Participants(roomID string) ([]wire.FullUserProfile, wire.GameState, bool, Error) {
	t.mu.RLock()
	rm, rerr := t.roomLocked(roomID)
	t.mu.RUnlock()
	if rerr != OK {
		return nil, wire.GameState{}, false, rerr
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.participantsLocked(), rm.state, rm.live, OK
}

// GetRoomOfUser returns the room id containing userID, if any, by the
// single-room-per-user invariant.
func (t *Table) GetRoomOfUser(userID int32) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.userRoom[userID]
	return id, ok
}

// LeaveResult reports what happened to a room after a user departed, so the
// handler can send the right follow-up packets.
type LeaveResult struct {
	RoomDestroyed  bool
	NewHostID      int32
	HostChanged    bool
	DepartedWasHost bool
}

// RemoveUser executes the host-transfer-on-leave protocol from §4.F:
// snapshot isHost/userlist/count before removal, remove, destroy if empty,
// else randomly draw a new host from the pre-leave snapshot (excluding the
// departing user and any monitor) if the departing user was host.
func (t *Table) RemoveUser(roomID string, userID int32) (LeaveResult, Error) {
	t.mu.Lock()
	rm, rerr := t.roomLocked(roomID)
	if rerr != OK {
		t.mu.Unlock()
		return LeaveResult{}, rerr
	}

	rm.mu.Lock()
	if _, exists := rm.users[userID]; !exists {
		rm.mu.Unlock()
		t.mu.Unlock()
		return LeaveResult{}, ErrUserNotFound
	}

	// 1. Snapshot before deciding anything.
	wasHost := rm.host != nil && *rm.host == userID
	candidates := make([]int32, 0, len(rm.users))
	for e := rm.order.Front(); e != nil; e = e.Next() {
		uid := e.Value.(int32)
		if uid == userID {
			continue
		}
		if _, isMonitor := rm.monitors[uid]; isMonitor {
			continue
		}
		candidates = append(candidates, uid)
	}

	// 2. Remove.
	delete(rm.users, userID)
	if el, ok := rm.orderE[userID]; ok {
		rm.order.Remove(el)
		delete(rm.orderE, userID)
	}
	delete(rm.monitors, userID)
	delete(rm.ready, userID)
	delete(t.userRoom, userID)

	result := LeaveResult{DepartedWasHost: wasHost}

	// 3. Destroy if empty.
	if len(rm.users) == 0 {
		rm.mu.Unlock()
		delete(t.rooms, roomID)
		t.mu.Unlock()
		result.RoomDestroyed = true
		return result, OK
	}
	t.mu.Unlock()

	// 4. Else, if the departing user was host, draw a new one from the
	// pre-leave snapshot — never from the post-removal state.
	if wasHost && len(candidates) > 0 {
		newHost := candidates[rand.Intn(len(candidates))]
		rm.host = &newHost
		result.HostChanged = true
		result.NewHostID = newHost
	}
	rm.mu.Unlock()
	return result, OK
}

// SetHost assigns roomID's host to userID if userID is a member.
func (t *Table) SetHost(roomID string, userID int32) Error {
	t.mu.RLock()
	rm, rerr := t.roomLocked(roomID)
	t.mu.RUnlock()
	if rerr != OK {
		return rerr
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if _, exists := rm.users[userID]; !exists {
		return ErrUserNotFound
	}
	rm.host = &userID
	return OK
}

// IsHost reports whether userID is roomID's current host.
func (t *Table) IsHost(roomID string, userID int32) (bool, Error) {
	t.mu.RLock()
	rm, rerr := t.roomLocked(roomID)
	t.mu.RUnlock()
	if rerr != OK {
		return false, rerr
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.host != nil && *rm.host == userID, OK
}

// SetState sets roomID's GameState.
func (t *Table) SetState(roomID string, state wire.GameState) Error {
	t.mu.RLock()
	rm, rerr := t.roomLocked(roomID)
	t.mu.RUnlock()
	if rerr != OK {
		return rerr
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.state = state
	return OK
}

// SetChart sets roomID's chart id and updates state to SelectChart(chartID).
func (t *Table) SetChart(roomID string, chartID int32) Error {
	t.mu.RLock()
	rm, rerr := t.roomLocked(roomID)
	t.mu.RUnlock()
	if rerr != OK {
		return rerr
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.chart = &chartID
	rm.state = wire.SelectChartState(&chartID)
	return OK
}

// SetCycle toggles roomID's cycle-mode flag.
func (t *Table) SetCycle(roomID string, cycle bool) Error {
	t.mu.RLock()
	rm, rerr := t.roomLocked(roomID)
	t.mu.RUnlock()
	if rerr != OK {
		return rerr
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.cycle = cycle
	return OK
}

// ToggleLock flips roomID's locked flag and returns the new value.
func (t *Table) ToggleLock(roomID string) (bool, Error) {
	t.mu.RLock()
	rm, rerr := t.roomLocked(roomID)
	t.mu.RUnlock()
	if rerr != OK {
		return false, rerr
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.locked = !rm.locked
	return rm.locked, OK
}

// SetMaxUsers sets roomID's member cap (0 = unbounded).
func (t *Table) SetMaxUsers(roomID string, max int) Error {
	t.mu.RLock()
	rm, rerr := t.roomLocked(roomID)
	t.mu.RUnlock()
	if rerr != OK {
		return rerr
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.maxUsers = max
	return OK
}

// SetContestMode toggles roomID's contest mode and whitelist.
func (t *Table) SetContestMode(roomID string, enabled bool, whitelist []int32) Error {
	t.mu.RLock()
	rm, rerr := t.roomLocked(roomID)
	t.mu.RUnlock()
	if rerr != OK {
		return rerr
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.contestMode = enabled
	rm.whitelist = make(map[int32]struct{}, len(whitelist))
	for _, id := range whitelist {
		rm.whitelist[id] = struct{}{}
	}
	return OK
}

// DestroyRoom force-removes roomID from the table, regardless of occupancy
// (used by the admin disband operation).
func (t *Table) DestroyRoom(roomID string) Error {
	t.mu.Lock()
	defer t.mu.Unlock()
	rm, ok := t.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	rm.mu.RLock()
	for e := rm.order.Front(); e != nil; e = e.Next() {
		delete(t.userRoom, e.Value.(int32))
	}
	rm.mu.RUnlock()
	delete(t.rooms, roomID)
	return OK
}

// Broadcast sends p to every member of roomID, optionally excluding one
// connection.
func (t *Table) Broadcast(roomID string, p wire.Packet, except Conn) Error {
	t.mu.RLock()
	rm, rerr := t.roomLocked(roomID)
	t.mu.RUnlock()
	if rerr != OK {
		return rerr
	}
	rm.Broadcast(p, except)
	return OK
}

// Rooms returns a snapshot of every room currently in the table, for the
// admin listing surface.
func (t *Table) Rooms() []Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Snapshot, 0, len(t.rooms))
	for _, rm := range t.rooms {
		out = append(out, rm.Snapshot())
	}
	return out
}
