package wire

import (
	"fmt"
	"reflect"

	"github.com/rymc/roomserver/internal/v1/protocol/bytebuf"
)

// Packet is the common capability every serverbound and clientbound payload
// has: it can encode itself into a ByteBuf. The registry is the only place
// that couples a packet id to a concrete Go type.
type Packet interface {
	Encode(buf *bytebuf.ByteBuf)
}

// Decoder reconstructs a Packet from the bytes following its id.
type Decoder func(buf *bytebuf.ByteBuf) (Packet, error)

// ErrUnknownPacketID is returned by Decode when no entry is registered for
// the id byte read from the frame — a protocol-fatal codec error.
type ErrUnknownPacketID struct{ ID byte }

func (e ErrUnknownPacketID) Error() string {
	return fmt.Sprintf("wire: unknown packet id 0x%02x", e.ID)
}

// ErrUnregisteredType is returned by Encode when asked to encode a Go type
// that was never registered.
type ErrUnregisteredType struct{ Type reflect.Type }

func (e ErrUnregisteredType) Error() string {
	return fmt.Sprintf("wire: packet type %s is not registered", e.Type)
}

// Registry is a bidirectional id<->type mapping for one direction of the
// wire protocol (serverbound or clientbound each get their own instance, so
// the two id spaces never collide).
type Registry struct {
	decoders map[byte]Decoder
	ids      map[reflect.Type]byte
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[byte]Decoder),
		ids:      make(map[reflect.Type]byte),
	}
}

// Register associates id with the Go type of sample and with decode. It
// panics on startup if id is already taken — registration is static and a
// collision is a programming error, not a runtime condition.
func (r *Registry) Register(id byte, sample Packet, decode Decoder) {
	t := reflect.TypeOf(sample)
	if _, exists := r.decoders[id]; exists {
		panic(fmt.Sprintf("wire: packet id 0x%02x registered twice", id))
	}
	r.decoders[id] = decode
	r.ids[t] = id
}

// Encode writes [id][payload] for p into buf.
func (r *Registry) Encode(buf *bytebuf.ByteBuf, p Packet) error {
	id, ok := r.ids[reflect.TypeOf(p)]
	if !ok {
		return ErrUnregisteredType{Type: reflect.TypeOf(p)}
	}
	buf.WriteUint8(id)
	p.Encode(buf)
	return nil
}

// Decode reads the id byte then invokes the matching decoder against the
// remainder of buf.
func (r *Registry) Decode(buf *bytebuf.ByteBuf) (Packet, error) {
	id, err := buf.ReadUint8()
	if err != nil {
		return nil, err
	}
	decode, ok := r.decoders[id]
	if !ok {
		return nil, ErrUnknownPacketID{ID: id}
	}
	return decode(buf)
}

// Serverbound ids: the space the server decodes client-sent frames from.
const (
	IDAuthenticate byte = iota
	IDCreateRoom
	IDJoinRoom
	IDLeaveRoom
	IDSelectChart
	IDRequestStart
)

// Clientbound ids: the space the server encodes frames into for clients.
// Independent from the serverbound id space by design (§6).
const (
	IDAuthenticateResult byte = iota
	IDCreateRoomResult
	IDLeaveRoomResult
	IDSelectChartResult
	IDRequestStartResult
	IDJoinRoomResult
	IDOnJoinRoom
	IDOnLeaveRoom
	IDChangeHost
	IDChangeState
	IDMessage
)

// NewServerBoundRegistry builds the registry the server uses to decode
// client-sent packets.
func NewServerBoundRegistry() *Registry {
	r := NewRegistry()
	r.Register(IDAuthenticate, ServerBoundAuthenticate{}, decodeServerBoundAuthenticate)
	r.Register(IDCreateRoom, ServerBoundCreateRoom{}, decodeServerBoundCreateRoom)
	r.Register(IDJoinRoom, ServerBoundJoinRoom{}, decodeServerBoundJoinRoom)
	r.Register(IDLeaveRoom, ServerBoundLeaveRoom{}, decodeServerBoundLeaveRoom)
	r.Register(IDSelectChart, ServerBoundSelectChart{}, decodeServerBoundSelectChart)
	r.Register(IDRequestStart, ServerBoundRequestStart{}, decodeServerBoundRequestStart)
	return r
}

// NewClientBoundRegistry builds the registry the server uses to encode
// packets sent to clients.
func NewClientBoundRegistry() *Registry {
	r := NewRegistry()
	r.Register(IDAuthenticateResult, ClientBoundAuthenticateResult{}, decodeClientBoundAuthenticateResult)
	r.Register(IDCreateRoomResult, ClientBoundCreateRoomResult{}, decodeClientBoundCreateRoomResult)
	r.Register(IDLeaveRoomResult, ClientBoundLeaveRoomResult{}, decodeClientBoundLeaveRoomResult)
	r.Register(IDSelectChartResult, ClientBoundSelectChartResult{}, decodeClientBoundSelectChartResult)
	r.Register(IDRequestStartResult, ClientBoundRequestStartResult{}, decodeClientBoundRequestStartResult)
	r.Register(IDJoinRoomResult, ClientBoundJoinRoomResult{}, decodeClientBoundJoinRoomResult)
	r.Register(IDOnJoinRoom, ClientBoundOnJoinRoom{}, decodeClientBoundOnJoinRoom)
	r.Register(IDOnLeaveRoom, ClientBoundOnLeaveRoom{}, decodeClientBoundOnLeaveRoom)
	r.Register(IDChangeHost, ClientBoundChangeHost{}, decodeClientBoundChangeHost)
	r.Register(IDChangeState, ClientBoundChangeState{}, decodeClientBoundChangeState)
	r.Register(IDMessage, ClientBoundMessage{}, decodeClientBoundMessage)
	return r
}
