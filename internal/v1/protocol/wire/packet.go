// Package wire implements the packet registry, typed payloads, and framing
// for the room protocol: handshake byte, VarInt length-prefixed frames,
// one-byte packet ids, little-endian fixed-width fields, and VarInt-prefixed
// UTF-8 strings.
package wire

import (
	"fmt"

	"github.com/rymc/roomserver/internal/v1/protocol/bytebuf"
)

// Result tag bytes shared by every paired Success/Failed clientbound packet.
const (
	ResultFailed  byte = 0x00
	ResultSuccess byte = 0x01
)

// GameStateKind discriminates the GameState tagged variant.
type GameStateKind uint8

const (
	GameStateSelectChart GameStateKind = iota
	GameStateWaitForReady
	GameStatePlaying
	GameStateSettling
)

// GameState is the room's state-machine value: SelectChart carries an
// optional chart id, the other variants carry no payload.
type GameState struct {
	Kind    GameStateKind
	ChartID *int32
}

// SelectChartState builds a SelectChart state, chartID nil if none picked yet.
func SelectChartState(chartID *int32) GameState {
	return GameState{Kind: GameStateSelectChart, ChartID: chartID}
}

// Encode writes the one-byte discriminator followed by the variant payload.
func (g GameState) Encode(buf *bytebuf.ByteBuf) {
	buf.WriteUint8(uint8(g.Kind))
	if g.Kind == GameStateSelectChart {
		buf.WriteBool(g.ChartID != nil)
		if g.ChartID != nil {
			buf.WriteInt32(*g.ChartID)
		}
	}
}

// DecodeGameState reads a GameState encoded by Encode.
func DecodeGameState(buf *bytebuf.ByteBuf) (GameState, error) {
	kindByte, err := buf.ReadUint8()
	if err != nil {
		return GameState{}, err
	}
	kind := GameStateKind(kindByte)
	if kind > GameStateSettling {
		return GameState{}, fmt.Errorf("wire: unknown game state kind %d", kindByte)
	}
	g := GameState{Kind: kind}
	if kind == GameStateSelectChart {
		present, err := buf.ReadBool()
		if err != nil {
			return GameState{}, err
		}
		if present {
			id, err := buf.ReadInt32()
			if err != nil {
				return GameState{}, err
			}
			g.ChartID = &id
		}
	}
	return g, nil
}

// UserProfile is the immutable identity a user authenticates as.
type UserProfile struct {
	UserID   int32
	Username string
}

// Encode writes the profile as [int32 userId][string username].
func (u UserProfile) Encode(buf *bytebuf.ByteBuf) {
	buf.WriteInt32(u.UserID)
	buf.WriteString(u.Username)
}

// DecodeUserProfile reads a UserProfile encoded by Encode.
func DecodeUserProfile(buf *bytebuf.ByteBuf) (UserProfile, error) {
	id, err := buf.ReadInt32()
	if err != nil {
		return UserProfile{}, err
	}
	name, err := buf.ReadString()
	if err != nil {
		return UserProfile{}, err
	}
	return UserProfile{UserID: id, Username: name}, nil
}

// FullUserProfile pairs a UserProfile with the monitor flag; this is the unit
// the wire protocol always encodes participants as.
type FullUserProfile struct {
	Profile UserProfile
	Monitor bool
}

// Encode writes [UserProfile][bool monitor].
func (f FullUserProfile) Encode(buf *bytebuf.ByteBuf) {
	f.Profile.Encode(buf)
	buf.WriteBool(f.Monitor)
}

// DecodeFullUserProfile reads a FullUserProfile encoded by Encode.
func DecodeFullUserProfile(buf *bytebuf.ByteBuf) (FullUserProfile, error) {
	profile, err := DecodeUserProfile(buf)
	if err != nil {
		return FullUserProfile{}, err
	}
	monitor, err := buf.ReadBool()
	if err != nil {
		return FullUserProfile{}, err
	}
	return FullUserProfile{Profile: profile, Monitor: monitor}, nil
}

// FullUserProfilesFromLists combines users then monitors into the single
// ordered participant sequence the wire protocol expects.
func FullUserProfilesFromLists(users, monitors []UserProfile) []FullUserProfile {
	out := make([]FullUserProfile, 0, len(users)+len(monitors))
	for _, u := range users {
		out = append(out, FullUserProfile{Profile: u, Monitor: false})
	}
	for _, m := range monitors {
		out = append(out, FullUserProfile{Profile: m, Monitor: true})
	}
	return out
}

// RoomInfoEntry is one member row inside a RoomInfo payload: a redundant
// userId alongside its FullUserProfile, preserved bit-exact from the
// original protocol's encoding.
type RoomInfoEntry struct {
	UserID  int32
	Profile FullUserProfile
}

// RoomInfo is the full room snapshot sent alongside Authenticate.Success when
// the authenticating user is already a room member (e.g. reconnecting).
type RoomInfo struct {
	RoomID  string
	State   GameState
	Live    bool
	Locked  bool
	Cycle   bool
	IsHost  bool
	IsReady bool
	Entries []RoomInfoEntry
}

// Encode writes
// [roomId][GameState][live][locked][cycle][isHost][isReady][VarInt n][{int32 userId, FullUserProfile} x n].
func (r RoomInfo) Encode(buf *bytebuf.ByteBuf) {
	buf.WriteString(r.RoomID)
	r.State.Encode(buf)
	buf.WriteBool(r.Live)
	buf.WriteBool(r.Locked)
	buf.WriteBool(r.Cycle)
	buf.WriteBool(r.IsHost)
	buf.WriteBool(r.IsReady)
	bytebuf.WriteVarInt(buf, int32(len(r.Entries)))
	for _, e := range r.Entries {
		buf.WriteInt32(e.UserID)
		e.Profile.Encode(buf)
	}
}

// DecodeRoomInfo reads a RoomInfo encoded by Encode.
func DecodeRoomInfo(buf *bytebuf.ByteBuf) (RoomInfo, error) {
	var r RoomInfo
	var err error
	if r.RoomID, err = buf.ReadString(); err != nil {
		return RoomInfo{}, err
	}
	if r.State, err = DecodeGameState(buf); err != nil {
		return RoomInfo{}, err
	}
	if r.Live, err = buf.ReadBool(); err != nil {
		return RoomInfo{}, err
	}
	if r.Locked, err = buf.ReadBool(); err != nil {
		return RoomInfo{}, err
	}
	if r.Cycle, err = buf.ReadBool(); err != nil {
		return RoomInfo{}, err
	}
	if r.IsHost, err = buf.ReadBool(); err != nil {
		return RoomInfo{}, err
	}
	if r.IsReady, err = buf.ReadBool(); err != nil {
		return RoomInfo{}, err
	}
	n, err := bytebuf.ReadVarInt(buf)
	if err != nil {
		return RoomInfo{}, err
	}
	r.Entries = make([]RoomInfoEntry, 0, n)
	for i := int32(0); i < n; i++ {
		uid, err := buf.ReadInt32()
		if err != nil {
			return RoomInfo{}, err
		}
		profile, err := DecodeFullUserProfile(buf)
		if err != nil {
			return RoomInfo{}, err
		}
		r.Entries = append(r.Entries, RoomInfoEntry{UserID: uid, Profile: profile})
	}
	return r, nil
}
