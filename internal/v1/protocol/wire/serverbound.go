package wire

import "github.com/rymc/roomserver/internal/v1/protocol/bytebuf"

// ServerBoundPacket is decoded by the server from a client-sent frame.
type ServerBoundPacket interface {
	Packet
	// isServerBound tags a packet type as belonging to the serverbound id
	// space; it has no behavior beyond keeping the two interfaces distinct.
	isServerBound()
}

// ServerBoundAuthenticate carries the bearer token a client uses to resolve
// its identity against the external identity service.
type ServerBoundAuthenticate struct {
	Token string
}

func (ServerBoundAuthenticate) isServerBound() {}

func (p ServerBoundAuthenticate) Encode(buf *bytebuf.ByteBuf) { buf.WriteString(p.Token) }

func decodeServerBoundAuthenticate(buf *bytebuf.ByteBuf) (Packet, error) {
	token, err := buf.ReadString()
	if err != nil {
		return nil, err
	}
	return ServerBoundAuthenticate{Token: token}, nil
}

// ServerBoundCreateRoom requests creation of a new room owned by the sender.
type ServerBoundCreateRoom struct {
	RoomID string
}

func (ServerBoundCreateRoom) isServerBound() {}

func (p ServerBoundCreateRoom) Encode(buf *bytebuf.ByteBuf) { buf.WriteString(p.RoomID) }

func decodeServerBoundCreateRoom(buf *bytebuf.ByteBuf) (Packet, error) {
	roomID, err := buf.ReadString()
	if err != nil {
		return nil, err
	}
	return ServerBoundCreateRoom{RoomID: roomID}, nil
}

// ServerBoundJoinRoom requests the sender join an existing room.
type ServerBoundJoinRoom struct {
	RoomID string
}

func (ServerBoundJoinRoom) isServerBound() {}

func (p ServerBoundJoinRoom) Encode(buf *bytebuf.ByteBuf) { buf.WriteString(p.RoomID) }

func decodeServerBoundJoinRoom(buf *bytebuf.ByteBuf) (Packet, error) {
	roomID, err := buf.ReadString()
	if err != nil {
		return nil, err
	}
	return ServerBoundJoinRoom{RoomID: roomID}, nil
}

// ServerBoundLeaveRoom requests the sender leave whatever room it currently
// occupies; the room is located server-side, so there is no payload.
type ServerBoundLeaveRoom struct{}

func (ServerBoundLeaveRoom) isServerBound() {}

func (ServerBoundLeaveRoom) Encode(*bytebuf.ByteBuf) {}

func decodeServerBoundLeaveRoom(*bytebuf.ByteBuf) (Packet, error) {
	return ServerBoundLeaveRoom{}, nil
}

// ServerBoundSelectChart is sent by the host to pick (or clear) the chart.
type ServerBoundSelectChart struct {
	ChartID int32
}

func (ServerBoundSelectChart) isServerBound() {}

func (p ServerBoundSelectChart) Encode(buf *bytebuf.ByteBuf) { buf.WriteInt32(p.ChartID) }

func decodeServerBoundSelectChart(buf *bytebuf.ByteBuf) (Packet, error) {
	chartID, err := buf.ReadInt32()
	if err != nil {
		return nil, err
	}
	return ServerBoundSelectChart{ChartID: chartID}, nil
}

// ServerBoundRequestStart is sent by the host to leave chart selection and
// enter WaitForReady.
type ServerBoundRequestStart struct{}

func (ServerBoundRequestStart) isServerBound() {}

func (ServerBoundRequestStart) Encode(*bytebuf.ByteBuf) {}

func decodeServerBoundRequestStart(*bytebuf.ByteBuf) (Packet, error) {
	return ServerBoundRequestStart{}, nil
}
