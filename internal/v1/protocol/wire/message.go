package wire

import (
	"fmt"

	"github.com/rymc/roomserver/internal/v1/protocol/bytebuf"
)

// MessageKind discriminates the polymorphic Message payload carried by
// ClientBoundMessage. A leading tag byte selects the variant.
type MessageKind uint8

const (
	MessageKindChat MessageKind = iota
	MessageKindLeaveRoom
	MessageKindSelectChart
	MessageKindStartPlaying
)

// Message is one variant of the tagged Message union.
type Message interface {
	Kind() MessageKind
	Encode(buf *bytebuf.ByteBuf)
}

// ChatMessage is a freeform chat line attributed to a sender.
type ChatMessage struct {
	SenderID   int32
	SenderName string
	Text       string
}

func (ChatMessage) Kind() MessageKind { return MessageKindChat }

func (m ChatMessage) Encode(buf *bytebuf.ByteBuf) {
	buf.WriteInt32(m.SenderID)
	buf.WriteString(m.SenderName)
	buf.WriteString(m.Text)
}

func decodeChatMessage(buf *bytebuf.ByteBuf) (Message, error) {
	id, err := buf.ReadInt32()
	if err != nil {
		return nil, err
	}
	name, err := buf.ReadString()
	if err != nil {
		return nil, err
	}
	text, err := buf.ReadString()
	if err != nil {
		return nil, err
	}
	return ChatMessage{SenderID: id, SenderName: name, Text: text}, nil
}

// LeaveRoomMessage announces that a user left (or disconnected from) a room.
type LeaveRoomMessage struct {
	UserID   int32
	Username string
}

func (LeaveRoomMessage) Kind() MessageKind { return MessageKindLeaveRoom }

func (m LeaveRoomMessage) Encode(buf *bytebuf.ByteBuf) {
	buf.WriteInt32(m.UserID)
	buf.WriteString(m.Username)
}

func decodeLeaveRoomMessage(buf *bytebuf.ByteBuf) (Message, error) {
	id, err := buf.ReadInt32()
	if err != nil {
		return nil, err
	}
	name, err := buf.ReadString()
	if err != nil {
		return nil, err
	}
	return LeaveRoomMessage{UserID: id, Username: name}, nil
}

// SelectChartMessage announces the host's chart pick to the whole room.
type SelectChartMessage struct {
	UserID   int32
	Username string
	ChartID  int32
}

func (SelectChartMessage) Kind() MessageKind { return MessageKindSelectChart }

func (m SelectChartMessage) Encode(buf *bytebuf.ByteBuf) {
	buf.WriteInt32(m.UserID)
	buf.WriteString(m.Username)
	buf.WriteInt32(m.ChartID)
}

func decodeSelectChartMessage(buf *bytebuf.ByteBuf) (Message, error) {
	id, err := buf.ReadInt32()
	if err != nil {
		return nil, err
	}
	name, err := buf.ReadString()
	if err != nil {
		return nil, err
	}
	chartID, err := buf.ReadInt32()
	if err != nil {
		return nil, err
	}
	return SelectChartMessage{UserID: id, Username: name, ChartID: chartID}, nil
}

// StartPlayingMessage has no payload; it announces the transition out of
// WaitForReady.
type StartPlayingMessage struct{}

func (StartPlayingMessage) Kind() MessageKind { return MessageKindStartPlaying }

func (StartPlayingMessage) Encode(*bytebuf.ByteBuf) {}

func decodeStartPlayingMessage(*bytebuf.ByteBuf) (Message, error) {
	return StartPlayingMessage{}, nil
}

// DecodeMessage reads the tag byte then decodes the matching variant.
func DecodeMessage(buf *bytebuf.ByteBuf) (Message, error) {
	kindByte, err := buf.ReadUint8()
	if err != nil {
		return nil, err
	}
	switch MessageKind(kindByte) {
	case MessageKindChat:
		return decodeChatMessage(buf)
	case MessageKindLeaveRoom:
		return decodeLeaveRoomMessage(buf)
	case MessageKindSelectChart:
		return decodeSelectChartMessage(buf)
	case MessageKindStartPlaying:
		return decodeStartPlayingMessage(buf)
	default:
		return nil, fmt.Errorf("wire: unknown message kind %d", kindByte)
	}
}

// EncodeMessage writes the tag byte followed by the variant's own encoding.
func EncodeMessage(buf *bytebuf.ByteBuf, m Message) {
	buf.WriteUint8(uint8(m.Kind()))
	m.Encode(buf)
}
