// Package bytebuf implements the growable, cursor-based byte buffer the wire
// codec is built on. Reads and writes each advance their own cursor, so a
// buffer can be written to completion and then read back without the caller
// tracking offsets by hand.
package bytebuf

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrNeedMoreData signals that a read would run past the writer index. The
// caller should preserve what it already consumed (via Mark/Reset) and wait
// for more bytes to arrive on the wire.
var ErrNeedMoreData = errors.New("bytebuf: need more data")

// ByteBuf is a growable buffer with independent read and write cursors.
type ByteBuf struct {
	buf        []byte
	readerIdx  int
	writerIdx  int
	markedIdx  int
}

// New returns an empty ByteBuf ready for writing.
func New() *ByteBuf {
	return &ByteBuf{buf: make([]byte, 0, 64)}
}

// WrapBytes returns a ByteBuf positioned to read the entirety of b.
// b is not copied; callers must not mutate it afterward.
func WrapBytes(b []byte) *ByteBuf {
	return &ByteBuf{buf: b, writerIdx: len(b)}
}

// ReadableBytes returns the number of bytes available to read.
func (b *ByteBuf) ReadableBytes() int { return b.writerIdx - b.readerIdx }

// ReaderIndex returns the current read cursor.
func (b *ByteBuf) ReaderIndex() int { return b.readerIdx }

// WriterIndex returns the current write cursor.
func (b *ByteBuf) WriterIndex() int { return b.writerIdx }

// MarkReaderIndex saves the current read cursor so it can be restored with
// ResetReaderIndex. Used by the frame decoder to undo a partial read when a
// full frame isn't available yet.
func (b *ByteBuf) MarkReaderIndex() { b.markedIdx = b.readerIdx }

// ResetReaderIndex restores the read cursor to the last MarkReaderIndex.
func (b *ByteBuf) ResetReaderIndex() { b.readerIdx = b.markedIdx }

// Bytes returns the unread portion of the buffer. The slice aliases the
// buffer's backing array and is only valid until the next write.
func (b *ByteBuf) Bytes() []byte { return b.buf[b.readerIdx:b.writerIdx] }

// WrittenBytes returns everything written so far, from the start of the
// buffer, regardless of the read cursor.
func (b *ByteBuf) WrittenBytes() []byte { return b.buf[:b.writerIdx] }

func (b *ByteBuf) ensureWritable(n int) {
	need := b.writerIdx + n
	if need <= cap(b.buf) {
		b.buf = b.buf[:max(len(b.buf), need)]
		return
	}
	grown := make([]byte, need, max(need, cap(b.buf)*2))
	copy(grown, b.buf)
	b.buf = grown
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (b *ByteBuf) checkReadable(n int) error {
	if b.ReadableBytes() < n {
		return ErrNeedMoreData
	}
	return nil
}

// WriteBytes appends raw bytes.
func (b *ByteBuf) WriteBytes(p []byte) {
	b.ensureWritable(len(p))
	copy(b.buf[b.writerIdx:], p)
	b.writerIdx += len(p)
}

// ReadBytes consumes and returns the next n bytes.
func (b *ByteBuf) ReadBytes(n int) ([]byte, error) {
	if err := b.checkReadable(n); err != nil {
		return nil, err
	}
	out := b.buf[b.readerIdx : b.readerIdx+n]
	b.readerIdx += n
	return out, nil
}

// WriteBool writes a single byte: 1 for true, 0 for false.
func (b *ByteBuf) WriteBool(v bool) {
	if v {
		b.WriteBytes([]byte{1})
	} else {
		b.WriteBytes([]byte{0})
	}
}

// ReadBool reads a single boolean byte.
func (b *ByteBuf) ReadBool() (bool, error) {
	p, err := b.ReadBytes(1)
	if err != nil {
		return false, err
	}
	return p[0] != 0, nil
}

// WriteUint8 writes a single unsigned byte.
func (b *ByteBuf) WriteUint8(v uint8) { b.WriteBytes([]byte{v}) }

// ReadUint8 reads a single unsigned byte.
func (b *ByteBuf) ReadUint8() (uint8, error) {
	p, err := b.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// WriteInt16 writes a little-endian signed 16-bit integer.
func (b *ByteBuf) WriteInt16(v int16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], uint16(v))
	b.WriteBytes(tmp[:])
}

// ReadInt16 reads a little-endian signed 16-bit integer.
func (b *ByteBuf) ReadInt16() (int16, error) {
	p, err := b.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(p)), nil
}

// WriteInt32 writes a little-endian signed 32-bit integer.
func (b *ByteBuf) WriteInt32(v int32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	b.WriteBytes(tmp[:])
}

// ReadInt32 reads a little-endian signed 32-bit integer.
func (b *ByteBuf) ReadInt32() (int32, error) {
	p, err := b.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(p)), nil
}

// WriteInt64 writes a little-endian signed 64-bit integer.
func (b *ByteBuf) WriteInt64(v int64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	b.WriteBytes(tmp[:])
}

// ReadInt64 reads a little-endian signed 64-bit integer.
func (b *ByteBuf) ReadInt64() (int64, error) {
	p, err := b.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(p)), nil
}

// WriteFloat32 writes a little-endian IEEE-754 float32.
func (b *ByteBuf) WriteFloat32(v float32) { b.WriteInt32(int32(math.Float32bits(v))) }

// ReadFloat32 reads a little-endian IEEE-754 float32.
func (b *ByteBuf) ReadFloat32() (float32, error) {
	v, err := b.ReadInt32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}

// WriteFloat64 writes a little-endian IEEE-754 float64.
func (b *ByteBuf) WriteFloat64(v float64) { b.WriteInt64(int64(math.Float64bits(v))) }

// ReadFloat64 reads a little-endian IEEE-754 float64.
func (b *ByteBuf) ReadFloat64() (float64, error) {
	v, err := b.ReadInt64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(v)), nil
}

// WriteString writes a VarInt byte-length prefix followed by the UTF-8 bytes.
func (b *ByteBuf) WriteString(s string) {
	WriteVarInt(b, int32(len(s)))
	b.WriteBytes([]byte(s))
}

// ReadString reads a VarInt byte-length prefix followed by that many UTF-8 bytes.
func (b *ByteBuf) ReadString() (string, error) {
	b.MarkReaderIndex()
	n, err := ReadVarInt(b)
	if err != nil {
		b.ResetReaderIndex()
		return "", err
	}
	p, err := b.ReadBytes(int(n))
	if err != nil {
		b.ResetReaderIndex()
		return "", err
	}
	return string(p), nil
}
