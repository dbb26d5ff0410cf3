package bytebuf_test

import (
	"testing"

	"github.com/rymc/roomserver/internal/v1/protocol/bytebuf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWidthRoundTrip(t *testing.T) {
	b := bytebuf.New()
	b.WriteBool(true)
	b.WriteUint8(0xAB)
	b.WriteInt16(-1234)
	b.WriteInt32(-123456789)
	b.WriteInt64(-1234567890123)
	b.WriteFloat32(3.5)
	b.WriteFloat64(-2.25)
	b.WriteString("hello, room")

	boolVal, err := b.ReadBool()
	require.NoError(t, err)
	assert.True(t, boolVal)

	u8, err := b.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAB), u8)

	i16, err := b.ReadInt16()
	require.NoError(t, err)
	assert.Equal(t, int16(-1234), i16)

	i32, err := b.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-123456789), i32)

	i64, err := b.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(-1234567890123), i64)

	f32, err := b.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, float32(3.5), f32)

	f64, err := b.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, -2.25, f64)

	s, err := b.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "hello, room", s)

	assert.Equal(t, 0, b.ReadableBytes())
}

func TestReadNeedsMoreData(t *testing.T) {
	b := bytebuf.New()
	b.WriteUint8(1)
	_, err := b.ReadInt32()
	assert.ErrorIs(t, err, bytebuf.ErrNeedMoreData)
}

func TestMarkAndResetReaderIndex(t *testing.T) {
	b := bytebuf.New()
	b.WriteInt32(42)
	b.MarkReaderIndex()
	_, err := b.ReadInt64()
	require.ErrorIs(t, err, bytebuf.ErrNeedMoreData)
	b.ResetReaderIndex()
	v, err := b.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)
}

func TestWrapBytes(t *testing.T) {
	b := bytebuf.WrapBytes([]byte{0x2a, 0x00, 0x00, 0x00})
	v, err := b.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)
	assert.Equal(t, 0, b.ReadableBytes())
}
