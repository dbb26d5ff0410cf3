// Package room implements the room lifecycle and state machine: membership,
// host transfer, chart selection, and the fan-out broadcaster that routes
// packets to the right recipients. The struct shape and locked/unlocked
// method-pair convention follow the teacher's video-conferencing room
// package; the state machine and host-transfer semantics are this domain's.
package room

import (
	"container/list"
	"sync"

	"github.com/rymc/roomserver/internal/v1/protocol/wire"
)

// Conn is the subset of *conn.Connection the room package needs. Declaring
// it here (rather than importing package conn) keeps RoomUser's reference to
// a Connection non-owning and avoids a cyclic dependency between room and
// conn, per the teacher's interface-based dependency-injection style.
type Conn interface {
	ID() string
	Send(p wire.Packet)
}

// RoomUser pairs a profile with a non-owning reference to its Connection —
// a lookup key plus a back-reference, never ownership (§9: break the
// RoomUser<->Connection cycle).
type RoomUser struct {
	Profile    wire.UserProfile
	Connection Conn
}

// Room holds one lobby's membership and state machine. Insertion order of
// users is preserved via order, mirroring the teacher's container/list use
// for other ordered queues.
type Room struct {
	mu sync.RWMutex

	id          string
	host        *int32
	state       wire.GameState
	live        bool
	locked      bool
	cycle       bool
	chart       *int32
	maxUsers    int // 0 means unbounded
	contestMode bool
	whitelist   map[int32]struct{}

	users  map[int32]RoomUser
	order  *list.List
	orderE map[int32]*list.Element
	ready  map[int32]struct{}

	monitors map[int32]struct{}
}

func newRoom(id string) *Room {
	return &Room{
		id:       id,
		state:    wire.SelectChartState(nil),
		users:    make(map[int32]RoomUser),
		order:    list.New(),
		orderE:   make(map[int32]*list.Element),
		ready:    make(map[int32]struct{}),
		monitors: make(map[int32]struct{}),
	}
}

// ID returns the room's wire-level identifier.
func (r *Room) ID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.id
}

// HostID returns the current host's user id, if any.
func (r *Room) HostID() (int32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.host == nil {
		return 0, false
	}
	return *r.host, true
}

// State returns the room's current GameState.
func (r *Room) State() wire.GameState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// MemberCount returns the number of users (including monitors) in the room.
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Snapshot is an immutable view of a Room used by the admin surface so it
// never has to reach into the locked struct directly.
type Snapshot struct {
	ID          string
	Host        *int32
	State       wire.GameState
	Live        bool
	Locked      bool
	Cycle       bool
	Chart       *int32
	MaxUsers    int
	ContestMode bool
	Users       []wire.UserProfile
	Monitors    []int32
}

// Snapshot copies out the room's current fields under the read lock.
func (r *Room) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Snapshot{
		ID:          r.id,
		Host:        r.host,
		State:       r.state,
		Live:        r.live,
		Locked:      r.locked,
		Cycle:       r.cycle,
		Chart:       r.chart,
		MaxUsers:    r.maxUsers,
		ContestMode: r.contestMode,
	}
	for e := r.order.Front(); e != nil; e = e.Next() {
		uid := e.Value.(int32)
		if _, isMonitor := r.monitors[uid]; isMonitor {
			continue
		}
		s.Users = append(s.Users, r.users[uid].Profile)
	}
	for uid := range r.monitors {
		s.Monitors = append(s.Monitors, uid)
	}
	return s
}

// participantsLocked returns the room's FullUserProfile list in the order
// required by §4.C: non-monitor users first, then monitors, both in join
// order. Caller must hold r.mu for reading.
func (r *Room) participantsLocked() []wire.FullUserProfile {
	var users, monitors []wire.UserProfile
	for e := r.order.Front(); e != nil; e = e.Next() {
		uid := e.Value.(int32)
		profile := r.users[uid].Profile
		if _, isMonitor := r.monitors[uid]; isMonitor {
			monitors = append(monitors, profile)
		} else {
			users = append(users, profile)
		}
	}
	return wire.FullUserProfilesFromLists(users, monitors)
}

// broadcastLocked sends p to every member's connection except the one whose
// connection ID matches exceptConnID (empty string excludes nobody). Caller
// must hold r.mu; sends never block on the network (Connection.Send is
// non-blocking), so this is safe to call under lock (§5).
func (r *Room) broadcastLocked(p wire.Packet, exceptConnID string) {
	for e := r.order.Front(); e != nil; e = e.Next() {
		uid := e.Value.(int32)
		u := r.users[uid]
		if u.Connection == nil {
			continue
		}
		if exceptConnID != "" && u.Connection.ID() == exceptConnID {
			continue
		}
		u.Connection.Send(p)
	}
}

// Broadcast sends p to every member's connection, optionally excluding one.
func (r *Room) Broadcast(p wire.Packet, except Conn) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exceptID := ""
	if except != nil {
		exceptID = except.ID()
	}
	r.broadcastLocked(p, exceptID)
}
