package wire

import "github.com/rymc/roomserver/internal/v1/protocol/bytebuf"

// ClientBoundPacket is encoded by the server and sent to a client.
type ClientBoundPacket interface {
	Packet
	// isClientBound tags a packet type as belonging to the clientbound id
	// space; it has no behavior beyond keeping the two interfaces distinct.
	isClientBound()
}

// ClientBoundAuthenticateResult is Success{FullUserProfile, roomInfo?} or
// Failure{reason}, per §4.C: `[0x01][FullUserProfile][bool hasRoom][RoomInfo?]`
// or `[0x00][string reason]`.
type ClientBoundAuthenticateResult struct {
	Ok       bool
	Profile  FullUserProfile
	RoomInfo *RoomInfo
	Reason   string
}

func (ClientBoundAuthenticateResult) isClientBound() {}

func AuthenticateSuccess(profile FullUserProfile, roomInfo *RoomInfo) ClientBoundAuthenticateResult {
	return ClientBoundAuthenticateResult{Ok: true, Profile: profile, RoomInfo: roomInfo}
}

func AuthenticateFailure(reason string) ClientBoundAuthenticateResult {
	return ClientBoundAuthenticateResult{Ok: false, Reason: reason}
}

func (p ClientBoundAuthenticateResult) Encode(buf *bytebuf.ByteBuf) {
	if !p.Ok {
		buf.WriteUint8(ResultFailed)
		buf.WriteString(p.Reason)
		return
	}
	buf.WriteUint8(ResultSuccess)
	p.Profile.Encode(buf)
	buf.WriteBool(p.RoomInfo != nil)
	if p.RoomInfo != nil {
		p.RoomInfo.Encode(buf)
	}
}

func decodeClientBoundAuthenticateResult(buf *bytebuf.ByteBuf) (Packet, error) {
	tag, err := buf.ReadUint8()
	if err != nil {
		return nil, err
	}
	if tag == ResultFailed {
		reason, err := buf.ReadString()
		if err != nil {
			return nil, err
		}
		return AuthenticateFailure(reason), nil
	}
	profile, err := DecodeFullUserProfile(buf)
	if err != nil {
		return nil, err
	}
	hasRoom, err := buf.ReadBool()
	if err != nil {
		return nil, err
	}
	var roomInfo *RoomInfo
	if hasRoom {
		ri, err := DecodeRoomInfo(buf)
		if err != nil {
			return nil, err
		}
		roomInfo = &ri
	}
	return AuthenticateSuccess(profile, roomInfo), nil
}

// simpleResult is the shared shape of every bare Success/Failed(reason) pair
// (CreateRoom, JoinRoom's siblings, LeaveRoom, SelectChart, RequestStart).
type simpleResult struct {
	Ok     bool
	Reason string
}

func (r simpleResult) Encode(buf *bytebuf.ByteBuf) {
	if r.Ok {
		buf.WriteUint8(ResultSuccess)
		return
	}
	buf.WriteUint8(ResultFailed)
	buf.WriteString(r.Reason)
}

func decodeSimpleResult(buf *bytebuf.ByteBuf) (simpleResult, error) {
	tag, err := buf.ReadUint8()
	if err != nil {
		return simpleResult{}, err
	}
	if tag == ResultSuccess {
		return simpleResult{Ok: true}, nil
	}
	reason, err := buf.ReadString()
	if err != nil {
		return simpleResult{}, err
	}
	return simpleResult{Ok: false, Reason: reason}, nil
}

// ClientBoundCreateRoomResult replies to ServerBoundCreateRoom.
type ClientBoundCreateRoomResult struct{ simpleResult }

func (ClientBoundCreateRoomResult) isClientBound() {}

func CreateRoomSuccess() ClientBoundCreateRoomResult {
	return ClientBoundCreateRoomResult{simpleResult{Ok: true}}
}
func CreateRoomFailed(reason string) ClientBoundCreateRoomResult {
	return ClientBoundCreateRoomResult{simpleResult{Reason: reason}}
}
func decodeClientBoundCreateRoomResult(buf *bytebuf.ByteBuf) (Packet, error) {
	r, err := decodeSimpleResult(buf)
	if err != nil {
		return nil, err
	}
	return ClientBoundCreateRoomResult{r}, nil
}

// ClientBoundLeaveRoomResult replies to ServerBoundLeaveRoom.
type ClientBoundLeaveRoomResult struct{ simpleResult }

func (ClientBoundLeaveRoomResult) isClientBound() {}

func LeaveRoomSuccess() ClientBoundLeaveRoomResult {
	return ClientBoundLeaveRoomResult{simpleResult{Ok: true}}
}
func LeaveRoomFailed(reason string) ClientBoundLeaveRoomResult {
	return ClientBoundLeaveRoomResult{simpleResult{Reason: reason}}
}
func decodeClientBoundLeaveRoomResult(buf *bytebuf.ByteBuf) (Packet, error) {
	r, err := decodeSimpleResult(buf)
	if err != nil {
		return nil, err
	}
	return ClientBoundLeaveRoomResult{r}, nil
}

// ClientBoundSelectChartResult replies to ServerBoundSelectChart.
type ClientBoundSelectChartResult struct{ simpleResult }

func (ClientBoundSelectChartResult) isClientBound() {}

func SelectChartSuccess() ClientBoundSelectChartResult {
	return ClientBoundSelectChartResult{simpleResult{Ok: true}}
}
func SelectChartFailed(reason string) ClientBoundSelectChartResult {
	return ClientBoundSelectChartResult{simpleResult{Reason: reason}}
}
func decodeClientBoundSelectChartResult(buf *bytebuf.ByteBuf) (Packet, error) {
	r, err := decodeSimpleResult(buf)
	if err != nil {
		return nil, err
	}
	return ClientBoundSelectChartResult{r}, nil
}

// ClientBoundRequestStartResult replies to ServerBoundRequestStart.
type ClientBoundRequestStartResult struct{ simpleResult }

func (ClientBoundRequestStartResult) isClientBound() {}

func RequestStartSuccess() ClientBoundRequestStartResult {
	return ClientBoundRequestStartResult{simpleResult{Ok: true}}
}
func RequestStartFailed(reason string) ClientBoundRequestStartResult {
	return ClientBoundRequestStartResult{simpleResult{Reason: reason}}
}
func decodeClientBoundRequestStartResult(buf *bytebuf.ByteBuf) (Packet, error) {
	r, err := decodeSimpleResult(buf)
	if err != nil {
		return nil, err
	}
	return ClientBoundRequestStartResult{r}, nil
}

// ClientBoundJoinRoomResult replies to ServerBoundJoinRoom:
// `[SUCCESS][GameState][VarInt n][FullUserProfile x n][bool isLive]` or
// `[FAILED][string reason]`.
type ClientBoundJoinRoomResult struct {
	Ok      bool
	State   GameState
	Entries []FullUserProfile
	IsLive  bool
	Reason  string
}

func (ClientBoundJoinRoomResult) isClientBound() {}

func JoinRoomSuccess(state GameState, entries []FullUserProfile, isLive bool) ClientBoundJoinRoomResult {
	return ClientBoundJoinRoomResult{Ok: true, State: state, Entries: entries, IsLive: isLive}
}

func JoinRoomFailed(reason string) ClientBoundJoinRoomResult {
	return ClientBoundJoinRoomResult{Reason: reason}
}

func (p ClientBoundJoinRoomResult) Encode(buf *bytebuf.ByteBuf) {
	if !p.Ok {
		buf.WriteUint8(ResultFailed)
		buf.WriteString(p.Reason)
		return
	}
	buf.WriteUint8(ResultSuccess)
	p.State.Encode(buf)
	bytebuf.WriteVarInt(buf, int32(len(p.Entries)))
	for _, e := range p.Entries {
		e.Encode(buf)
	}
	buf.WriteBool(p.IsLive)
}

func decodeClientBoundJoinRoomResult(buf *bytebuf.ByteBuf) (Packet, error) {
	tag, err := buf.ReadUint8()
	if err != nil {
		return nil, err
	}
	if tag == ResultFailed {
		reason, err := buf.ReadString()
		if err != nil {
			return nil, err
		}
		return JoinRoomFailed(reason), nil
	}
	state, err := DecodeGameState(buf)
	if err != nil {
		return nil, err
	}
	n, err := bytebuf.ReadVarInt(buf)
	if err != nil {
		return nil, err
	}
	entries := make([]FullUserProfile, 0, n)
	for i := int32(0); i < n; i++ {
		e, err := DecodeFullUserProfile(buf)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	isLive, err := buf.ReadBool()
	if err != nil {
		return nil, err
	}
	return JoinRoomSuccess(state, entries, isLive), nil
}

// ClientBoundOnJoinRoom broadcasts a new participant to the rest of the room.
type ClientBoundOnJoinRoom struct {
	Profile FullUserProfile
}

func (ClientBoundOnJoinRoom) isClientBound() {}

func (p ClientBoundOnJoinRoom) Encode(buf *bytebuf.ByteBuf) { p.Profile.Encode(buf) }

func decodeClientBoundOnJoinRoom(buf *bytebuf.ByteBuf) (Packet, error) {
	profile, err := DecodeFullUserProfile(buf)
	if err != nil {
		return nil, err
	}
	return ClientBoundOnJoinRoom{Profile: profile}, nil
}

// ClientBoundOnLeaveRoom is the dedicated clientbound departure broadcast.
// Registered per the wire contract but currently unused by the handler,
// which sends Message(LeaveRoomMessage) instead — see Open Question
// decisions for why both stay registered.
type ClientBoundOnLeaveRoom struct {
	UserID int32
}

func (ClientBoundOnLeaveRoom) isClientBound() {}

func (p ClientBoundOnLeaveRoom) Encode(buf *bytebuf.ByteBuf) { buf.WriteInt32(p.UserID) }

func decodeClientBoundOnLeaveRoom(buf *bytebuf.ByteBuf) (Packet, error) {
	id, err := buf.ReadInt32()
	if err != nil {
		return nil, err
	}
	return ClientBoundOnLeaveRoom{UserID: id}, nil
}

// ClientBoundChangeHost tells a user whether it is now the room's host.
type ClientBoundChangeHost struct {
	IsHost bool
}

func (ClientBoundChangeHost) isClientBound() {}

func (p ClientBoundChangeHost) Encode(buf *bytebuf.ByteBuf) { buf.WriteBool(p.IsHost) }

func decodeClientBoundChangeHost(buf *bytebuf.ByteBuf) (Packet, error) {
	isHost, err := buf.ReadBool()
	if err != nil {
		return nil, err
	}
	return ClientBoundChangeHost{IsHost: isHost}, nil
}

// ClientBoundChangeState broadcasts a room state-machine transition.
type ClientBoundChangeState struct {
	State GameState
}

func (ClientBoundChangeState) isClientBound() {}

func (p ClientBoundChangeState) Encode(buf *bytebuf.ByteBuf) { p.State.Encode(buf) }

func decodeClientBoundChangeState(buf *bytebuf.ByteBuf) (Packet, error) {
	state, err := DecodeGameState(buf)
	if err != nil {
		return nil, err
	}
	return ClientBoundChangeState{State: state}, nil
}

// ClientBoundMessage wraps a polymorphic Message variant.
type ClientBoundMessage struct {
	Body Message
}

func (ClientBoundMessage) isClientBound() {}

func (p ClientBoundMessage) Encode(buf *bytebuf.ByteBuf) { EncodeMessage(buf, p.Body) }

func decodeClientBoundMessage(buf *bytebuf.ByteBuf) (Packet, error) {
	body, err := DecodeMessage(buf)
	if err != nil {
		return nil, err
	}
	return ClientBoundMessage{Body: body}, nil
}
