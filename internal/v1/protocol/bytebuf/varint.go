package bytebuf

import "errors"

// ErrBadVarInt signals a VarInt that exceeds the maximum encoded width
// (5 bytes for a 32-bit value) without terminating — the stream is corrupt,
// not merely short.
var ErrBadVarInt = errors.New("bytebuf: varint too long")

const maxVarIntBytes = 5

// WriteVarInt writes v using LEB128 variable-length encoding.
func WriteVarInt(b *ByteBuf, v int32) {
	u := uint32(v)
	for {
		if u&^0x7f == 0 {
			b.WriteUint8(uint8(u))
			return
		}
		b.WriteUint8(uint8(u&0x7f) | 0x80)
		u >>= 7
	}
}

// ReadVarInt reads an LEB128-encoded int32. It returns ErrNeedMoreData if the
// buffer runs out before a terminating byte, and ErrBadVarInt if all five
// bytes it may read carry the continuation bit.
func ReadVarInt(b *ByteBuf) (int32, error) {
	var result uint32
	for i := 0; i < maxVarIntBytes; i++ {
		p, err := b.ReadBytes(1)
		if err != nil {
			return 0, ErrNeedMoreData
		}
		chunk := p[0]
		result |= uint32(chunk&0x7f) << (7 * i)
		if chunk&0x80 == 0 {
			return int32(result), nil
		}
	}
	return 0, ErrBadVarInt
}

// VarIntSize returns the number of bytes WriteVarInt would emit for v.
func VarIntSize(v int32) int {
	u := uint32(v)
	n := 1
	for u&^0x7f != 0 {
		u >>= 7
		n++
	}
	return n
}
